// Package panel runs resource pages for callers: it mounts pages for a
// locale and actor, applies writes, and records them in the audit log.
package panel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"panelkit/internal/action"
	"panelkit/internal/config"
	"panelkit/internal/events"
	"panelkit/internal/i18n"
	"panelkit/internal/orm"
	"panelkit/internal/page"
	"panelkit/internal/resource"
	"panelkit/internal/translatable"
)

var tracer = otel.Tracer("panelkit/panel")

type Panel struct {
	DB       *sql.DB
	Store    *orm.Store
	Registry *resource.Registry
	Events   events.Writer
	I18n     *i18n.Bundle
	Config   *config.Config
	Log      zerolog.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, reg *resource.Registry, bundle *i18n.Bundle, log zerolog.Logger) Panel {
	if cfg == nil {
		cfg = config.Default()
	}
	return Panel{
		DB:       db,
		Store:    orm.NewStore(db),
		Registry: reg,
		Events:   events.Writer{DB: db},
		I18n:     bundle,
		Config:   cfg,
		Log:      log,
		Now:      time.Now,
	}
}

// Request identifies who is calling and in which language.
type Request struct {
	Actor  string
	Locale language.Tag
}

func (p Panel) localizer(req Request) *i18n.Localizer {
	return p.I18n.Localizer(req.Locale)
}

func (p Panel) options(req Request, store *orm.Store) page.Options {
	loc := p.localizer(req)
	return page.Options{
		Store:     store,
		Localizer: loc,
		Driver:    translatable.New(store, loc.Locale(), i18n.BaseLocale),
		URL: func(slug, name, recordID string) (string, error) {
			path, err := p.Registry.URL(slug, name, recordID)
			if err != nil {
				return "", err
			}
			return p.basePath() + path, nil
		},
	}
}

func (p Panel) basePath() string {
	if p.Config == nil || p.Config.Panel.Path == "/" {
		return ""
	}
	return p.Config.Panel.Path
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// inTx runs fn with a store bound to one transaction and commits when fn
// succeeds. The audit event of a write goes through the same tx.
func (p Panel) inTx(ctx context.Context, fn func(tx *sql.Tx, store *orm.Store) error) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx, p.Store.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Mount builds the page called name of the resource slug and mounts it on
// recordID, which is ignored by index and create pages.
func (p Panel) Mount(ctx context.Context, req Request, slug, name, recordID string) (*page.Page, error) {
	return p.mount(ctx, req, p.Store, slug, name, recordID)
}

func (p Panel) mount(ctx context.Context, req Request, store *orm.Store, slug, name, recordID string) (*page.Page, error) {
	res, route, err := p.Registry.Page(slug, name)
	if err != nil {
		return nil, err
	}
	pg, err := page.New(res, name, p.options(req, store))
	if err != nil {
		return nil, err
	}
	if !route.Kind.NeedsRecord() {
		recordID = ""
	}
	if err := pg.Mount(ctx, recordID); err != nil {
		return nil, err
	}
	return pg, nil
}

// Page mounts a page and renders it.
func (p Panel) Page(ctx context.Context, req Request, slug, name, recordID string) (PageView, error) {
	ctx, span := startSpan(ctx, "panel.page",
		attribute.String("panel.resource", slug), attribute.String("panel.page", name))
	pg, err := p.Mount(ctx, req, slug, name, recordID)
	if err != nil {
		endSpan(span, err)
		return PageView{}, err
	}
	view, err := p.render(ctx, req, pg)
	endSpan(span, err)
	return view, err
}

// ListOptions selects one page of an index listing.
type ListOptions struct {
	Trashed orm.TrashedFilter
	Page    int
	PerPage int
}

// ListRecords lists the records of slug with their visible row actions.
func (p Panel) ListRecords(ctx context.Context, req Request, slug string, opts ListOptions) (RecordList, error) {
	res, err := p.Registry.Resource(slug)
	if err != nil {
		return RecordList{}, err
	}
	name, ok := res.PageOfKind(resource.Index)
	if !ok {
		return RecordList{}, fmt.Errorf("%w: %s has no index page", resource.ErrUnknownPage, slug)
	}
	pg, err := p.Mount(ctx, req, slug, name, "")
	if err != nil {
		return RecordList{}, err
	}
	return p.list(ctx, pg, opts)
}

func (p Panel) list(ctx context.Context, pg *page.Page, opts ListOptions) (RecordList, error) {
	if opts.PerPage <= 0 {
		opts.PerPage = p.Config.PageSize()
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	records, total, err := pg.List(ctx, orm.ListOptions{
		Trashed: opts.Trashed,
		Limit:   opts.PerPage,
		Offset:  (opts.Page - 1) * opts.PerPage,
	})
	if err != nil {
		return RecordList{}, err
	}
	out := RecordList{Total: total, Page: opts.Page, PerPage: opts.PerPage, Records: make([]RecordView, 0, len(records))}
	for _, rec := range records {
		view := listed(pg.Resource, p.recordView(pg, rec))
		view.Actions = actionViews(pg.RecordActions(rec))
		out.Records = append(out.Records, view)
	}
	return out, nil
}

// CreateRecord runs the create page of slug with input.
func (p Panel) CreateRecord(ctx context.Context, req Request, slug string, input map[string]any) (Result, error) {
	ctx, span := startSpan(ctx, "panel.create", attribute.String("panel.resource", slug))
	var res Result
	err := p.inTx(ctx, func(tx *sql.Tx, store *orm.Store) error {
		var err error
		res, err = p.create(ctx, req, tx, store, slug, input)
		return err
	})
	endSpan(span, err)
	if err != nil {
		return Result{}, err
	}
	p.Log.Info().Str("resource", slug).Str("record", res.Record.ID).Str("actor", req.Actor).Msg("record created")
	return res, nil
}

func (p Panel) create(ctx context.Context, req Request, tx *sql.Tx, store *orm.Store, slug string, input map[string]any) (Result, error) {
	res, err := p.Registry.Resource(slug)
	if err != nil {
		return Result{}, err
	}
	name, ok := res.PageOfKind(resource.Create)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s has no create page", resource.ErrUnknownPage, slug)
	}
	pg, err := p.mount(ctx, req, store, slug, name, "")
	if err != nil {
		return Result{}, err
	}
	rec, err := pg.Create(ctx, input)
	if err != nil {
		p.Log.Warn().Err(err).Str("resource", slug).Str("actor", req.Actor).Msg("create failed")
		return Result{}, err
	}
	if err := p.Events.Append(ctx, tx, events.RecordCreated, slug, rec.ID(), req.Actor, events.Payload{"title": pg.RecordTitle()}); err != nil {
		return Result{}, err
	}
	view := p.recordView(pg, rec)
	return Result{Record: &view, Notifications: pg.Notifications()}, nil
}

// UpdateRecord runs the edit page of slug on id with input.
func (p Panel) UpdateRecord(ctx context.Context, req Request, slug, id string, input map[string]any) (Result, error) {
	ctx, span := startSpan(ctx, "panel.update",
		attribute.String("panel.resource", slug), attribute.String("panel.record", id))
	var res Result
	err := p.inTx(ctx, func(tx *sql.Tx, store *orm.Store) error {
		var err error
		res, err = p.update(ctx, req, tx, store, slug, id, input)
		return err
	})
	endSpan(span, err)
	if err != nil {
		return Result{}, err
	}
	p.Log.Info().Str("resource", slug).Str("record", id).Str("actor", req.Actor).Msg("record updated")
	return res, nil
}

func (p Panel) update(ctx context.Context, req Request, tx *sql.Tx, store *orm.Store, slug, id string, input map[string]any) (Result, error) {
	res, err := p.Registry.Resource(slug)
	if err != nil {
		return Result{}, err
	}
	name, ok := res.PageOfKind(resource.Edit)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s has no edit page", resource.ErrUnknownPage, slug)
	}
	pg, err := p.mount(ctx, req, store, slug, name, id)
	if err != nil {
		return Result{}, err
	}
	if err := pg.Save(ctx, input); err != nil {
		p.Log.Warn().Err(err).Str("resource", slug).Str("record", id).Str("actor", req.Actor).Msg("update failed")
		return Result{}, err
	}
	if err := p.Events.Append(ctx, tx, events.RecordUpdated, slug, id, req.Actor, events.Payload{"fields": inputKeys(input)}); err != nil {
		return Result{}, err
	}
	view := p.recordView(pg, pg.Record())
	return Result{Record: &view, Notifications: pg.Notifications()}, nil
}

// CallAction runs the named action on record id. The action is looked up
// on the resource's edit page, then its view page, then its index rows.
func (p Panel) CallAction(ctx context.Context, req Request, slug, id, name string) (Result, error) {
	ctx, span := startSpan(ctx, "panel.action",
		attribute.String("panel.resource", slug),
		attribute.String("panel.record", id),
		attribute.String("panel.action", name))
	var res Result
	err := p.inTx(ctx, func(tx *sql.Tx, store *orm.Store) error {
		var err error
		res, err = p.callAction(ctx, req, tx, store, slug, id, name)
		return err
	})
	if err == nil {
		span.SetAttributes(attribute.String("panel.outcome", res.Outcome))
	}
	endSpan(span, err)
	return res, err
}

func (p Panel) callAction(ctx context.Context, req Request, tx *sql.Tx, store *orm.Store, slug, id, name string) (Result, error) {
	pg, err := p.actionPage(ctx, req, store, slug, id)
	if err != nil {
		return Result{}, err
	}
	var a *action.Action
	if pg.Kind == resource.Index {
		rec, ferr := store.FindWithTrashed(ctx, pg.Resource.Model, id)
		if ferr != nil {
			return Result{}, ferr
		}
		a, err = pg.CallRecordAction(ctx, rec, name)
	} else {
		a, err = pg.CallAction(ctx, name)
	}
	if err != nil {
		log := p.Log.Warn()
		if !errors.Is(err, action.ErrHidden) && !errors.Is(err, action.ErrUnsupported) && !errors.Is(err, page.ErrUnknownAction) {
			log = p.Log.Error()
		}
		log.Err(err).Str("resource", slug).Str("record", id).Str("action", name).Str("actor", req.Actor).Msg("action refused")
		return Result{}, err
	}
	out := Result{Action: a.Name, Outcome: a.Outcome().String(), Notifications: pg.Notifications()}
	if a.Outcome() != action.OutcomeNone {
		if err := p.Events.Append(ctx, tx, events.ActionEvent(a.Name, out.Outcome), slug, id, req.Actor, nil); err != nil {
			return Result{}, err
		}
	}
	switch a.Outcome() {
	case action.OutcomeSuccess:
		p.Log.Info().Str("resource", slug).Str("record", id).Str("action", a.Name).Str("actor", req.Actor).Msg("action succeeded")
	case action.OutcomeFailure:
		p.Log.Warn().Str("resource", slug).Str("record", id).Str("action", a.Name).Str("actor", req.Actor).Msg("action failed")
	}
	if rec, err := store.FindWithTrashed(ctx, pg.Resource.Model, id); err == nil {
		view := p.recordView(pg, rec)
		out.Record = &view
	} else if !errors.Is(err, orm.ErrNotFound) {
		return Result{}, err
	}
	return out, nil
}

func (p Panel) actionPage(ctx context.Context, req Request, store *orm.Store, slug, id string) (*page.Page, error) {
	res, err := p.Registry.Resource(slug)
	if err != nil {
		return nil, err
	}
	for _, kind := range []resource.Kind{resource.Edit, resource.View, resource.Index} {
		name, ok := res.PageOfKind(kind)
		if !ok {
			continue
		}
		return p.mount(ctx, req, store, slug, name, id)
	}
	return nil, fmt.Errorf("%w: %s has no page hosting record actions", resource.ErrUnknownPage, slug)
}

// RecordActions lists the row actions record id allows.
func (p Panel) RecordActions(ctx context.Context, req Request, slug, id string) ([]action.View, error) {
	res, err := p.Registry.Resource(slug)
	if err != nil {
		return nil, err
	}
	rec, err := p.Store.FindWithTrashed(ctx, res.Model, id)
	if err != nil {
		return nil, err
	}
	name, ok := res.PageOfKind(resource.Index)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no index page", resource.ErrUnknownPage, slug)
	}
	pg, err := page.New(res, name, p.options(req, p.Store))
	if err != nil {
		return nil, err
	}
	return actionViews(pg.RecordActions(rec)), nil
}

// Navigation returns the localized navigation.
func (p Panel) Navigation(req Request) []resource.NavigationGroup {
	groups := p.Registry.Navigation(p.localizer(req))
	base := p.basePath()
	for _, g := range groups {
		for i := range g.Items {
			g.Items[i].URL = base + g.Items[i].URL
		}
	}
	return groups
}

// AuditEvents returns the audit tail.
func (p Panel) AuditEvents(ctx context.Context, f events.Filter) ([]events.Event, error) {
	return p.Events.List(ctx, f)
}
