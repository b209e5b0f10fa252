// Package resource declares admin resources: a model, its labels and
// navigation entry, its form schema, and the pages that manage it.
package resource

import (
	"panelkit/internal/action"
	"panelkit/internal/form"
	"panelkit/internal/orm"
)

// Kind is the behaviour of a page.
type Kind string

const (
	Index  Kind = "index"
	Create Kind = "create"
	View   Kind = "view"
	Edit   Kind = "edit"
)

func (k Kind) Valid() bool {
	switch k {
	case Index, Create, View, Edit:
		return true
	}
	return false
}

// NeedsRecord reports whether pages of this kind are mounted on a record.
func (k Kind) NeedsRecord() bool {
	return k == View || k == Edit
}

func (k Kind) rank() int {
	switch k {
	case Index:
		return 0
	case Create:
		return 1
	case View:
		return 2
	case Edit:
		return 3
	}
	return 4
}

// RecordParam is the path placeholder replaced by a record id.
const RecordParam = "{record}"

// PageRoute mounts a page kind at a path relative to the resource.
type PageRoute struct {
	Kind Kind
	Path string
}

// Route builds a PageRoute.
func Route(kind Kind, path string) PageRoute {
	return PageRoute{Kind: kind, Path: path}
}

// Resource describes how one model is managed in the panel. Label,
// PluralLabel and NavigationGroup are translation keys.
type Resource struct {
	Slug            string
	Model           *orm.Model
	Label           string
	PluralLabel     string
	NavigationGroup string
	NavigationIcon  string
	NavigationSort  int
	// RecordTitleColumn overrides the model's title column.
	RecordTitleColumn string
	// Columns are listed on the index page.
	Columns []string
	// Form returns a fresh schema for every page.
	Form  func() []form.Component
	Pages map[string]PageRoute

	// Optional overrides of the page defaults.
	FormActions          func(kind Kind) []*action.Action
	HeaderActions        func(kind Kind) []*action.Action
	RecordActions        func() []*action.Action
	FullWidthFormActions bool
}

// RecordTitle names rec in headings and notifications.
func (r *Resource) RecordTitle(rec orm.Record) string {
	if rec == nil {
		return ""
	}
	if r.RecordTitleColumn == "" {
		return rec.Title()
	}
	if v := rec.Get(r.RecordTitleColumn); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return rec.ID()
}

// FormSchema returns a fresh schema, or none.
func (r *Resource) FormSchema() []form.Component {
	if r.Form == nil {
		return nil
	}
	return r.Form()
}

// HasPage reports whether the resource mounts a page called name.
func (r *Resource) HasPage(name string) bool {
	_, ok := r.Pages[name]
	return ok
}

// PageOfKind returns the first page name of kind, in name order.
func (r *Resource) PageOfKind(kind Kind) (string, bool) {
	best := ""
	for name, route := range r.Pages {
		if route.Kind != kind {
			continue
		}
		if best == "" || name < best {
			best = name
		}
	}
	return best, best != ""
}
