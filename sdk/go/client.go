package panelsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is a minimal panel HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no bearer token is set.
	ActorID    string
	Locale     string
	HTTPClient *http.Client
	Timeout    time.Duration

	mu     sync.Mutex
	routes map[string]Route
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/admin",
		Timeout:  10 * time.Second,
	}
}

// Route is a named resource page.
type Route struct {
	Name     string `json:"name"`
	Resource string `json:"resource"`
	Page     string `json:"page"`
	Kind     string `json:"kind"`
	Path     string `json:"path"`
}

// NavigationItem links to a resource index.
type NavigationItem struct {
	Resource string `json:"resource"`
	Label    string `json:"label"`
	Icon     string `json:"icon"`
	URL      string `json:"url"`
}

type NavigationGroup struct {
	Label string           `json:"label"`
	Items []NavigationItem `json:"items"`
}

// Panel describes the served panel.
type Panel struct {
	Panel struct {
		ID    string `json:"id"`
		Path  string `json:"path"`
		Brand string `json:"brand"`
	} `json:"panel"`
	Locale     string            `json:"locale"`
	Locales    []string          `json:"locales"`
	Navigation []NavigationGroup `json:"navigation"`
	Routes     []Route           `json:"routes"`
}

// Modal is the confirmation shown before an action runs.
type Modal struct {
	Heading     string `json:"heading"`
	Description string `json:"description"`
	SubmitLabel string `json:"submit_label"`
}

// Action is a rendered action button.
type Action struct {
	Name                 string `json:"name"`
	Label                string `json:"label"`
	Icon                 string `json:"icon"`
	GroupedIcon          string `json:"grouped_icon"`
	Color                string `json:"color"`
	URL                  string `json:"url"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Modal                *Modal `json:"modal"`
}

type Notification struct {
	Status string `json:"status"`
	Title  string `json:"title"`
}

// Record is a record as listed or returned by a write.
type Record struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Trashed    bool           `json:"trashed"`
	Attributes map[string]any `json:"attributes"`
	Actions    []Action       `json:"actions"`
}

type RecordList struct {
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Records []Record `json:"records"`
}

// Form is the state and schema of a page form.
type Form struct {
	State  map[string]any   `json:"state"`
	Fields []map[string]any `json:"fields"`
	Groups []map[string]any `json:"groups"`
}

// Page is a rendered resource page.
type Page struct {
	Resource             string         `json:"resource"`
	Page                 string         `json:"page"`
	Kind                 string         `json:"kind"`
	Title                string         `json:"title"`
	Record               *Record        `json:"record"`
	Form                 *Form          `json:"form"`
	FormActions          []Action       `json:"form_actions"`
	FullWidthFormActions bool           `json:"full_width_form_actions"`
	HeaderActions        []Action       `json:"header_actions"`
	Records              *RecordList    `json:"records"`
	Notifications        []Notification `json:"notifications"`
}

// Result is the outcome of a create, update or action call.
type Result struct {
	Action        string         `json:"action"`
	Outcome       string         `json:"outcome"`
	Record        *Record        `json:"record"`
	Notifications []Notification `json:"notifications"`
}

// Event is an audit log entry.
type Event struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts"`
	Type     string `json:"type"`
	Resource string `json:"resource"`
	RecordID string `json:"record_id"`
	ActorID  string `json:"actor_id"`
	Payload  string `json:"payload_json"`
}

// EventList wraps an event page; NextBefore is 0 on the last page.
type EventList struct {
	Items      []Event `json:"items"`
	NextBefore int64   `json:"next_before"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListOptions selects a page of records. Trashed is "without", "with" or
// "only".
type ListOptions struct {
	Trashed string
	Page    int
	PerPage int
}

// EventsFilter narrows Events.
type EventsFilter struct {
	Type     string
	Resource string
	RecordID string
	Before   int64
	Limit    int
}

// Panel returns navigation and routes.
func (c *Client) Panel(ctx context.Context) (Panel, error) {
	var resp Panel
	err := c.do(ctx, http.MethodGet, "resources", nil, &resp)
	return resp, err
}

// Page renders the named page of a resource. recordID is ignored by pages
// that do not take a record.
func (c *Client) Page(ctx context.Context, resource, page, recordID string) (Page, error) {
	route, err := c.route(ctx, resource+"."+page)
	if err != nil {
		return Page{}, err
	}
	endpoint := strings.ReplaceAll(route.Path, "{record}", url.PathEscape(recordID))
	var resp Page
	err = c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListRecords lists records of a resource.
func (c *Client) ListRecords(ctx context.Context, resource string, opts ListOptions) (RecordList, error) {
	q := url.Values{}
	if opts.Trashed != "" {
		q.Set("trashed", opts.Trashed)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	var resp RecordList
	err := c.do(ctx, http.MethodGet, withQuery(recordsPath(resource), q), nil, &resp)
	return resp, err
}

// CreateRecord submits the create form of a resource.
func (c *Client) CreateRecord(ctx context.Context, resource string, data map[string]any) (Result, error) {
	var resp Result
	err := c.do(ctx, http.MethodPost, recordsPath(resource), data, &resp)
	return resp, err
}

// UpdateRecord submits the edit form of a record.
func (c *Client) UpdateRecord(ctx context.Context, resource, id string, data map[string]any) (Result, error) {
	var resp Result
	err := c.do(ctx, http.MethodPatch, recordsPath(resource)+"/"+url.PathEscape(id), data, &resp)
	return resp, err
}

// RecordActions lists the actions a record allows.
func (c *Client) RecordActions(ctx context.Context, resource, id string) ([]Action, error) {
	var resp []Action
	err := c.do(ctx, http.MethodGet, recordsPath(resource)+"/"+url.PathEscape(id)+"/actions", nil, &resp)
	return resp, err
}

// CallAction runs an action such as delete, restore or forceDelete.
func (c *Client) CallAction(ctx context.Context, resource, id, action string) (Result, error) {
	var resp Result
	endpoint := fmt.Sprintf("%s/%s/actions/%s", recordsPath(resource), url.PathEscape(id), url.PathEscape(action))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Events returns audit events, newest first.
func (c *Client) Events(ctx context.Context, f EventsFilter) (EventList, error) {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Resource != "" {
		q.Set("resource", f.Resource)
	}
	if f.RecordID != "" {
		q.Set("record_id", f.RecordID)
	}
	if f.Before > 0 {
		q.Set("before", strconv.FormatInt(f.Before, 10))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var resp EventList
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) route(ctx context.Context, name string) (Route, error) {
	c.mu.Lock()
	cached := c.routes
	c.mu.Unlock()
	if cached == nil {
		p, err := c.Panel(ctx)
		if err != nil {
			return Route{}, err
		}
		cached = make(map[string]Route, len(p.Routes))
		for _, r := range p.Routes {
			cached[r.Name] = r
		}
		c.mu.Lock()
		c.routes = cached
		c.mu.Unlock()
	}
	r, ok := cached[name]
	if !ok {
		return Route{}, fmt.Errorf("unknown route %s", name)
	}
	return r, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Locale != "" {
		req.Header.Set("Accept-Language", c.Locale)
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + strings.TrimRight(c.BasePath, "/")
}

func recordsPath(resource string) string {
	return url.PathEscape(resource) + "/records"
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}
