package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"panelkit/internal/action"
	"panelkit/internal/events"
	"panelkit/internal/form"
	"panelkit/internal/orm"
	"panelkit/internal/page"
	"panelkit/internal/panel"
	"panelkit/internal/resource"
)

// Config for the HTTP API handler.
type Config struct {
	Panel    panel.Panel
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"action_hidden"`
	Message string         `json:"message" example:"action is not available for this record"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"action\":\"restore\"}"`
}

type requestKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the panel API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Panel.Registry == nil {
		return nil, errors.New("server: panel has no resource registry")
	}
	if cfg.Panel.I18n == nil {
		return nil, errors.New("server: panel has no translations")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/admin"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	log := cfg.Panel.Log
	router := chi.NewRouter()
	router.Use(requestLogger(log))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Panelkit API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerPanel(group, cfg.Panel)
	registerPages(group, cfg.Panel)
	registerRecords(group, cfg.Panel)
	registerEvents(group, cfg.Panel)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			evt := log.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				evt = log.Error()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe *form.ValidationError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"fields": fe.Fields})
	}
	var ve orm.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"model": ve.Model, "column": ve.Column})
	}
	switch {
	case errors.Is(err, orm.ErrNotFound),
		errors.Is(err, resource.ErrUnknownResource),
		errors.Is(err, resource.ErrUnknownPage),
		errors.Is(err, page.ErrUnknownAction):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, action.ErrHidden):
		return newAPIError(http.StatusForbidden, "action_hidden", err.Error(), nil)
	case errors.Is(err, action.ErrUnsupported), errors.Is(err, page.ErrNotSupported):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// panelRequest identifies the caller and picks the response locale.
func panelRequest(ctx context.Context, p panel.Panel) (panel.Request, error) {
	actor, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return panel.Request{}, authErr
	}
	r, _ := ctx.Value(requestKey{}).(*http.Request)
	return panel.Request{Actor: actor, Locale: p.I18n.ResolveRequest(r)}, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join("/", basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join("/", basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{item.Get, item.Post, item.Patch, item.Put, item.Delete} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// ensureDefaultErrorResponses documents the error envelope on every
// operation.
func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil {
		return
	}
	envelope := &huma.Response{
		Description: "Error",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = envelope
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	oas.Components.SecuritySchemes["actorHeader"] = &huma.SecurityScheme{Type: "apiKey", In: "header", Name: actorHeader}
	security := []map[string][]string{{"bearerAuth": {}}, {"actorHeader": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if route == healthPath {
				op.Security = []map[string][]string{}
			} else {
				op.Security = security
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Panelkit API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;. Pass ?lang= or Accept-Language to pick a locale.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerPanel(api huma.API, p panel.Panel) {
	huma.Register(api, huma.Operation{
		OperationID: "panel",
		Method:      http.MethodGet,
		Path:        "/resources",
		Summary:     "Panel navigation and routes",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PanelResponse `json:"body"`
	}, error) {
		req, err := panelRequest(ctx, p)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body PanelResponse `json:"body"`
		}{Body: panelResponse(p, req)}, nil
	})
}

func registerPages(api huma.API, p panel.Panel) {
	for _, route := range p.Registry.Routes() {
		route := route
		op := huma.Operation{
			OperationID: "page-" + route.Resource + "-" + route.Page,
			Method:      http.MethodGet,
			Path:        route.Path,
			Summary:     fmt.Sprintf("Render the %s page of %s", route.Page, route.Resource),
			Tags:        []string{route.Resource},
			Errors: []int{
				http.StatusUnauthorized,
				http.StatusNotFound,
				http.StatusInternalServerError,
			},
		}
		if !route.Kind.NeedsRecord() {
			huma.Register(api, op, func(ctx context.Context, _ *struct{}) (*pageOutput, error) {
				return renderPage(ctx, p, route, "")
			})
			continue
		}
		huma.Register(api, op, func(ctx context.Context, input *struct {
			Record string `path:"record"`
		}) (*pageOutput, error) {
			return renderPage(ctx, p, route, input.Record)
		})
	}
}

func renderPage(ctx context.Context, p panel.Panel, route resource.RouteInfo, recordID string) (*pageOutput, error) {
	req, err := panelRequest(ctx, p)
	if err != nil {
		return nil, err
	}
	view, err := p.Page(ctx, req, route.Resource, route.Page, recordID)
	if err != nil {
		return nil, handleError(err)
	}
	return &pageOutput{Body: view}, nil
}

func registerRecords(api huma.API, p panel.Panel) {
	for _, res := range p.Registry.Resources() {
		slug := res.Slug
		base := "/" + slug + "/records"
		errs := []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		}

		if _, ok := res.PageOfKind(resource.Index); ok {
			huma.Register(api, huma.Operation{
				OperationID: "list-" + slug,
				Method:      http.MethodGet,
				Path:        base,
				Summary:     "List " + slug,
				Tags:        []string{slug},
				Errors:      errs,
			}, func(ctx context.Context, input *struct {
				Trashed string `query:"trashed" enum:"without,with,only" default:"without"`
				Page    int    `query:"page" minimum:"0"`
				PerPage int    `query:"per_page" minimum:"0" maximum:"500"`
			}) (*recordListOutput, error) {
				req, err := panelRequest(ctx, p)
				if err != nil {
					return nil, err
				}
				list, err := p.ListRecords(ctx, req, slug, panel.ListOptions{
					Trashed: trashedFilter(input.Trashed),
					Page:    input.Page,
					PerPage: input.PerPage,
				})
				if err != nil {
					return nil, handleError(err)
				}
				return &recordListOutput{Body: list}, nil
			})

			huma.Register(api, huma.Operation{
				OperationID: "record-actions-" + slug,
				Method:      http.MethodGet,
				Path:        base + "/{record}/actions",
				Summary:     "List the actions available on a " + slug + " record",
				Tags:        []string{slug},
				Errors:      errs,
			}, func(ctx context.Context, input *struct {
				Record string `path:"record"`
			}) (*struct {
				Body []action.View `json:"body"`
			}, error) {
				req, err := panelRequest(ctx, p)
				if err != nil {
					return nil, err
				}
				views, err := p.RecordActions(ctx, req, slug, input.Record)
				if err != nil {
					return nil, handleError(err)
				}
				return &struct {
					Body []action.View `json:"body"`
				}{Body: nonNilSlice(views)}, nil
			})
		}

		if _, ok := res.PageOfKind(resource.Create); ok {
			huma.Register(api, huma.Operation{
				OperationID:   "create-" + slug,
				Method:        http.MethodPost,
				Path:          base,
				Summary:       "Create a " + slug + " record",
				Tags:          []string{slug},
				DefaultStatus: http.StatusCreated,
				Errors:        errs,
			}, func(ctx context.Context, input *struct {
				Body RecordInput `json:"body"`
			}) (*resultOutput, error) {
				req, err := panelRequest(ctx, p)
				if err != nil {
					return nil, err
				}
				out, err := p.CreateRecord(ctx, req, slug, input.Body)
				if err != nil {
					return nil, handleError(err)
				}
				return &resultOutput{Body: out}, nil
			})
		}

		if _, ok := res.PageOfKind(resource.Edit); ok {
			huma.Register(api, huma.Operation{
				OperationID: "update-" + slug,
				Method:      http.MethodPatch,
				Path:        base + "/{record}",
				Summary:     "Update a " + slug + " record",
				Tags:        []string{slug},
				Errors:      errs,
			}, func(ctx context.Context, input *struct {
				Record string      `path:"record"`
				Body   RecordInput `json:"body"`
			}) (*resultOutput, error) {
				req, err := panelRequest(ctx, p)
				if err != nil {
					return nil, err
				}
				out, err := p.UpdateRecord(ctx, req, slug, input.Record, input.Body)
				if err != nil {
					return nil, handleError(err)
				}
				return &resultOutput{Body: out}, nil
			})
		}

		huma.Register(api, huma.Operation{
			OperationID: "call-action-" + slug,
			Method:      http.MethodPost,
			Path:        base + "/{record}/actions/{action}",
			Summary:     "Run an action on a " + slug + " record",
			Tags:        []string{slug},
			Errors:      errs,
		}, func(ctx context.Context, input *struct {
			Record string `path:"record"`
			Action string `path:"action"`
		}) (*resultOutput, error) {
			req, err := panelRequest(ctx, p)
			if err != nil {
				return nil, err
			}
			out, err := p.CallAction(ctx, req, slug, input.Record, input.Action)
			if err != nil {
				return nil, handleError(err)
			}
			return &resultOutput{Body: out}, nil
		})
	}
}

func registerEvents(api huma.API, p panel.Panel) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Type     string `query:"type"`
		Resource string `query:"resource"`
		RecordID string `query:"record_id"`
		Before   int64  `query:"before" minimum:"0"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventList `json:"body"`
	}, error) {
		if _, err := panelRequest(ctx, p); err != nil {
			return nil, err
		}
		limit := normalizeLimit(input.Limit)
		items, err := p.AuditEvents(ctx, events.Filter{
			Type:     input.Type,
			Resource: input.Resource,
			RecordID: input.RecordID,
			Before:   input.Before,
			Limit:    limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventList{Items: []events.Event{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextBefore = items[limit-1].ID
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body EventList `json:"body"`
		}{Body: resp}, nil
	})
}

func trashedFilter(in string) orm.TrashedFilter {
	switch in {
	case "with":
		return orm.WithTrashed
	case "only":
		return orm.OnlyTrashed
	default:
		return orm.WithoutTrashed
	}
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
