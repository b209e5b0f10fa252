// Package page mounts a resource page: its record, its form, and the
// actions hosted on it.
package page

import (
	"context"
	"errors"
	"fmt"

	"panelkit/internal/action"
	"panelkit/internal/form"
	"panelkit/internal/orm"
	"panelkit/internal/resource"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrNotSupported  = errors.New("operation not supported by this page")
)

// URLBuilder builds the path of a resource page.
type URLBuilder func(slug, page, recordID string) (string, error)

// Options are the collaborators a page is mounted with.
type Options struct {
	Store     *orm.Store
	Localizer action.Localizer
	// Driver is nil when translatable columns are edited as stored.
	Driver form.TranslatableContentDriver
	URL    URLBuilder
}

// Page is one mounted page of a resource. It hosts its actions and forms
// and collects the notifications they raise.
type Page struct {
	Resource *resource.Resource
	Name     string
	Kind     resource.Kind

	opts          Options
	record        orm.Record
	form          *form.Container
	notifications []action.Notification

	cachedFormActions   *actionSet
	cachedHeaderActions *actionSet
}

// New builds an unmounted page called name of res.
func New(res *resource.Resource, name string, opts Options) (*Page, error) {
	route, ok := res.Pages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", resource.ErrUnknownPage, res.Slug, name)
	}
	return &Page{Resource: res, Name: name, Kind: route.Kind, opts: opts}, nil
}

// Mount loads the page's record and fills its form. View and edit pages
// find the record even when it is trashed.
func (p *Page) Mount(ctx context.Context, recordID string) error {
	switch p.Kind {
	case resource.Index:
		return nil
	case resource.Create:
		p.form = p.newForm()
		return p.form.Fill(ctx, nil)
	}
	rec, err := p.opts.Store.FindWithTrashed(ctx, p.Resource.Model, recordID)
	if err != nil {
		return err
	}
	p.record = rec
	p.form = p.newForm()
	p.form.SetRecord(rec)
	return p.form.Fill(ctx, p.recordState(rec))
}

func (p *Page) newForm() *form.Container {
	return form.New(p, p.opts.Store, p.Resource.Model, p.Resource.FormSchema()...)
}

func (p *Page) recordState(rec orm.Record) map[string]any {
	if p.opts.Driver != nil {
		return p.opts.Driver.RecordAttributes(rec)
	}
	return rec.Attributes()
}

func (p *Page) Record() orm.Record    { return p.record }
func (p *Page) Form() *form.Container { return p.form }

// Localizer implements action.Host.
func (p *Page) Localizer() action.Localizer { return p.opts.Localizer }

// Notify implements action.Host.
func (p *Page) Notify(n action.Notification) {
	p.notifications = append(p.notifications, n)
}

func (p *Page) Notifications() []action.Notification {
	return append([]action.Notification(nil), p.notifications...)
}

// TranslatableContentDriver implements form.Host.
func (p *Page) TranslatableContentDriver() form.TranslatableContentDriver { return p.opts.Driver }

func (p *Page) translate(key string, params map[string]string) string {
	if p.opts.Localizer == nil {
		return key
	}
	return p.opts.Localizer.T(key, params)
}

// Title is the page heading.
func (p *Page) Title() string {
	label := p.Resource.Label
	if p.Kind == resource.Index {
		label = p.Resource.PluralLabel
	}
	return p.translate("pages."+string(p.Kind)+".title", map[string]string{"label": p.translate(label, nil)})
}

// RecordTitle names the mounted record.
func (p *Page) RecordTitle() string {
	return p.TitleOf(p.record)
}

// TitleOf names rec in the page's locale. A translatable title column is
// read through the translatable driver.
func (p *Page) TitleOf(rec orm.Record) string {
	if rec == nil {
		return ""
	}
	col := p.Resource.RecordTitleColumn
	if col == "" {
		col = rec.Model().TitleColumn
	}
	if p.opts.Driver != nil && col != "" && rec.Model().IsTranslatable(col) {
		if s, ok := p.opts.Driver.RecordAttributes(rec)[col].(string); ok && s != "" {
			return s
		}
	}
	return p.Resource.RecordTitle(rec)
}

func (p *Page) url(kind resource.Kind, recordID string) string {
	name, ok := p.Resource.PageOfKind(kind)
	if !ok || p.opts.URL == nil {
		return ""
	}
	url, err := p.opts.URL(p.Resource.Slug, name, recordID)
	if err != nil {
		return ""
	}
	return url
}

// Create saves a new record from input and then its relationships.
func (p *Page) Create(ctx context.Context, input map[string]any) (orm.Record, error) {
	if p.Kind != resource.Create || p.form == nil {
		return nil, ErrNotSupported
	}
	p.form.SetState(input)
	if err := p.create(ctx); err != nil {
		return nil, err
	}
	return p.record, nil
}

func (p *Page) create(ctx context.Context) error {
	if err := p.form.Validate(); err != nil {
		return err
	}
	data := p.form.State(true)
	var rec orm.Record
	if p.opts.Driver != nil {
		rec = p.opts.Driver.MakeRecord(p.Resource.Model, data)
	} else {
		rec = p.opts.Store.New(p.Resource.Model)
		rec.Fill(data)
	}
	if err := rec.Save(ctx); err != nil {
		return err
	}
	p.form.SetRecord(rec)
	if err := p.form.SaveRelationships(ctx); err != nil {
		return err
	}
	p.record = rec
	p.Notify(action.Notification{Status: action.StatusSuccess, Title: p.translate("pages.create.messages.created", nil)})
	return nil
}

// Save updates the mounted record from input and then its relationships.
func (p *Page) Save(ctx context.Context, input map[string]any) error {
	if p.Kind != resource.Edit || p.record == nil {
		return ErrNotSupported
	}
	p.form.SetState(input)
	return p.save(ctx)
}

func (p *Page) save(ctx context.Context) error {
	if err := p.form.Validate(); err != nil {
		return err
	}
	data := p.form.State(true)
	if p.opts.Driver != nil {
		if err := p.opts.Driver.UpdateRecord(ctx, p.record, data); err != nil {
			return err
		}
	} else {
		p.record.Fill(data)
		if err := p.record.Save(ctx); err != nil {
			return err
		}
	}
	if err := p.form.SaveRelationships(ctx); err != nil {
		return err
	}
	p.Notify(action.Notification{Status: action.StatusSuccess, Title: p.translate("pages.edit.messages.saved", nil)})
	return nil
}

// List returns a page of the resource's records and the total count.
func (p *Page) List(ctx context.Context, opts orm.ListOptions) ([]orm.Record, int, error) {
	if p.Kind != resource.Index {
		return nil, 0, ErrNotSupported
	}
	records, err := p.opts.Store.List(ctx, p.Resource.Model, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := p.opts.Store.Count(ctx, p.Resource.Model, opts.Trashed)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
