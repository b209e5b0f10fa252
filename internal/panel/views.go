package panel

import (
	"context"
	"sort"

	"panelkit/internal/action"
	"panelkit/internal/form"
	"panelkit/internal/orm"
	"panelkit/internal/page"
	"panelkit/internal/resource"
)

type RecordView struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Trashed    bool           `json:"trashed"`
	Attributes map[string]any `json:"attributes"`
	Actions    []action.View  `json:"actions,omitempty"`
}

type RecordList struct {
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Records []RecordView `json:"records"`
}

type FormView struct {
	State  map[string]any   `json:"state"`
	Fields []form.FieldView `json:"fields"`
	Groups []form.GroupView `json:"groups,omitempty"`
}

// PageView is a rendered page.
type PageView struct {
	Resource             string                `json:"resource"`
	Page                 string                `json:"page"`
	Kind                 resource.Kind         `json:"kind"`
	Title                string                `json:"title"`
	Record               *RecordView           `json:"record,omitempty"`
	Form                 *FormView             `json:"form,omitempty"`
	FormActions          []action.View         `json:"form_actions"`
	FullWidthFormActions bool                  `json:"full_width_form_actions"`
	HeaderActions        []action.View         `json:"header_actions"`
	Records              *RecordList           `json:"records,omitempty"`
	Notifications        []action.Notification `json:"notifications,omitempty"`
}

// Result is the outcome of a write.
type Result struct {
	Action        string                `json:"action,omitempty"`
	Outcome       string                `json:"outcome,omitempty"`
	Record        *RecordView           `json:"record,omitempty"`
	Notifications []action.Notification `json:"notifications"`
}

func (p Panel) render(ctx context.Context, req Request, pg *page.Page) (PageView, error) {
	view := PageView{
		Resource:             pg.Resource.Slug,
		Page:                 pg.Name,
		Kind:                 pg.Kind,
		Title:                pg.Title(),
		FormActions:          actionViews(pg.CachedFormActions()),
		FullWidthFormActions: pg.HasFullWidthFormActions(),
		HeaderActions:        actionViews(pg.VisibleHeaderActions()),
		Notifications:        pg.Notifications(),
	}
	if rec := pg.Record(); rec != nil {
		rv := p.recordView(pg, rec)
		view.Record = &rv
	}
	if f := pg.Form(); f != nil {
		fields, groups := f.Schema()
		view.Form = &FormView{State: f.State(false), Fields: fields, Groups: groups}
	}
	if pg.Kind == resource.Index {
		list, err := p.list(ctx, pg, ListOptions{})
		if err != nil {
			return PageView{}, err
		}
		view.Records = &list
	}
	return view, nil
}

func (p Panel) recordView(pg *page.Page, rec orm.Record) RecordView {
	attrs := rec.Attributes()
	if d := pg.TranslatableContentDriver(); d != nil {
		attrs = d.RecordAttributes(rec)
	}
	trashed := false
	if t, ok := rec.(orm.Trashable); ok {
		trashed = t.Trashed()
	}
	return RecordView{ID: rec.ID(), Title: pg.TitleOf(rec), Trashed: trashed, Attributes: attrs}
}

// listed keeps only the resource's index columns.
func listed(res *resource.Resource, view RecordView) RecordView {
	if len(res.Columns) == 0 {
		return view
	}
	picked := make(map[string]any, len(res.Columns)+1)
	picked["id"] = view.ID
	for _, c := range res.Columns {
		picked[c] = view.Attributes[c]
	}
	view.Attributes = picked
	return view
}

func actionViews(actions []*action.Action) []action.View {
	out := make([]action.View, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.View())
	}
	return out
}

func inputKeys(input map[string]any) []string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
