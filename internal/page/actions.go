package page

import (
	"context"
	"fmt"

	"panelkit/internal/action"
	"panelkit/internal/orm"
	"panelkit/internal/resource"
)

// actionSet is a name-keyed collection that keeps declaration order. A
// later action with a taken name replaces the earlier one in place.
type actionSet struct {
	list   []*action.Action
	byName map[string]int
}

func newActionSet(actions []*action.Action) *actionSet {
	set := &actionSet{byName: make(map[string]int, len(actions))}
	for _, a := range actions {
		if a == nil {
			continue
		}
		if i, ok := set.byName[a.Name]; ok {
			set.list[i] = a
			continue
		}
		set.byName[a.Name] = len(set.list)
		set.list = append(set.list, a)
	}
	return set
}

func (s *actionSet) get(name string) *action.Action {
	i, ok := s.byName[name]
	if !ok {
		return nil
	}
	return s.list[i]
}

func (p *Page) bind(a *action.Action) {
	a.Mount(p)
	if p.record != nil {
		a.For(p.record)
	}
	if a.RecordTitleFunc == nil {
		a.RecordTitleFunc = p.TitleOf
	}
}

// CachedFormActions returns the form actions, building and binding them
// to the page on first use.
func (p *Page) CachedFormActions() []*action.Action {
	if p.cachedFormActions == nil {
		p.cachedFormActions = p.cacheActions(p.FormActions())
	}
	return p.cachedFormActions.list
}

// CachedFormAction returns the cached form action called name, or nil.
func (p *Page) CachedFormAction(name string) *action.Action {
	p.CachedFormActions()
	return p.cachedFormActions.get(name)
}

func (p *Page) cacheActions(actions []*action.Action) *actionSet {
	set := newActionSet(actions)
	for _, a := range set.list {
		p.bind(a)
	}
	return set
}

// FormActions builds the actions shown under the page's form.
func (p *Page) FormActions() []*action.Action {
	if p.Resource.FormActions != nil {
		return p.Resource.FormActions(p.Kind)
	}
	switch p.Kind {
	case resource.Create:
		return []*action.Action{
			{
				Name:  "create",
				Label: action.Trans("pages.create.form.actions.create.label"),
				Color: "primary",
				Effect: func(ctx context.Context, _ *action.Action) error {
					return p.create(ctx)
				},
			},
			{
				Name:  "createAnother",
				Label: action.Trans("pages.create.form.actions.create_another.label"),
				Color: "gray",
				Effect: func(ctx context.Context, _ *action.Action) error {
					if err := p.create(ctx); err != nil {
						return err
					}
					p.record = nil
					p.form = p.newForm()
					return p.form.Fill(ctx, nil)
				},
			},
			p.cancelAction("pages.create.form.actions.cancel.label"),
		}
	case resource.Edit:
		return []*action.Action{
			{
				Name:  "save",
				Label: action.Trans("pages.edit.form.actions.save.label"),
				Color: "primary",
				Effect: func(ctx context.Context, _ *action.Action) error {
					return p.save(ctx)
				},
			},
			p.cancelAction("pages.edit.form.actions.cancel.label"),
		}
	}
	return nil
}

func (p *Page) cancelAction(label string) *action.Action {
	return &action.Action{
		Name:  "cancel",
		Label: action.Trans(label),
		Color: "gray",
		URL:   p.url(resource.Index, ""),
	}
}

// HasFullWidthFormActions reports whether form actions span the form.
func (p *Page) HasFullWidthFormActions() bool {
	return p.Resource.FullWidthFormActions
}

// CachedHeaderActions returns the header actions, building and binding
// them to the page on first use.
func (p *Page) CachedHeaderActions() []*action.Action {
	if p.cachedHeaderActions == nil {
		p.cachedHeaderActions = p.cacheActions(p.HeaderActions())
	}
	return p.cachedHeaderActions.list
}

func (p *Page) CachedHeaderAction(name string) *action.Action {
	p.CachedHeaderActions()
	return p.cachedHeaderActions.get(name)
}

// HeaderActions builds the actions shown next to the page title.
func (p *Page) HeaderActions() []*action.Action {
	if p.Resource.HeaderActions != nil {
		return p.Resource.HeaderActions(p.Kind)
	}
	switch p.Kind {
	case resource.Index:
		if _, ok := p.Resource.PageOfKind(resource.Create); !ok {
			return nil
		}
		return []*action.Action{{
			Name: "create",
			Label: func(*action.Action) string {
				return p.translate("pages.index.actions.create.label", map[string]string{"label": p.translate(p.Resource.Label, nil)})
			},
			URL: p.url(resource.Create, ""),
		}}
	case resource.View:
		var out []*action.Action
		if _, ok := p.Resource.PageOfKind(resource.Edit); ok {
			out = append(out, &action.Action{
				Name:  "edit",
				Label: action.Trans("pages.view.actions.edit.label"),
				URL:   p.url(resource.Edit, p.recordID()),
			})
		}
		return append(out, action.Restore(), action.ForceDelete())
	case resource.Edit:
		return action.RecordActions()
	}
	return nil
}

func (p *Page) recordID() string {
	if p.record == nil {
		return ""
	}
	return p.record.ID()
}

// VisibleHeaderActions returns the cached header actions the mounted
// record allows.
func (p *Page) VisibleHeaderActions() []*action.Action {
	var out []*action.Action
	for _, a := range p.CachedHeaderActions() {
		if a.IsVisible() {
			out = append(out, a)
		}
	}
	return out
}

func (p *Page) recordActionSet(rec orm.Record) *actionSet {
	build := action.RecordActions
	if p.Resource.RecordActions != nil {
		build = p.Resource.RecordActions
	}
	set := newActionSet(build())
	for _, a := range set.list {
		a.Mount(p).For(rec)
		if a.RecordTitleFunc == nil {
			a.RecordTitleFunc = p.TitleOf
		}
	}
	return set
}

// RecordActions builds the row actions of an index page for rec, mounted
// on the page and filtered to those rec allows.
func (p *Page) RecordActions(rec orm.Record) []*action.Action {
	var out []*action.Action
	for _, a := range p.recordActionSet(rec).list {
		if a.IsVisible() {
			out = append(out, a)
		}
	}
	return out
}

// CallAction runs the header or form action called name. Actions that
// only link somewhere have nothing to run.
func (p *Page) CallAction(ctx context.Context, name string) (*action.Action, error) {
	a := p.CachedHeaderAction(name)
	if a == nil {
		a = p.CachedFormAction(name)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a, a.Call(ctx)
}

// CallRecordAction runs the row action called name against rec.
func (p *Page) CallRecordAction(ctx context.Context, rec orm.Record, name string) (*action.Action, error) {
	a := p.recordActionSet(rec).get(name)
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a, a.Call(ctx)
}
