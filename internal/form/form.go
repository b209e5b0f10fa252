// Package form holds form schemas and their state: fields, layout groups,
// and groups entangled with a singular relationship of the form's record.
package form

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"panelkit/internal/orm"
)

// TranslatableContentDriver reads and writes translatable columns for the
// active locale.
type TranslatableContentDriver interface {
	MakeRecord(model *orm.Model, data map[string]any) orm.Record
	UpdateRecord(ctx context.Context, rec orm.Record, data map[string]any) error
	RecordAttributes(rec orm.Record) map[string]any
}

// Host is the page a form is rendered on.
type Host interface {
	// TranslatableContentDriver returns nil when the page is not translatable.
	TranslatableContentDriver() TranslatableContentDriver
}

// Component is a Field or a *Group.
type Component interface {
	component()
}

// Field is a single input bound to one state key.
type Field struct {
	Name     string
	Label    string
	Default  any
	Required bool
	// Transient fields stay out of the dehydrated state.
	Transient bool
}

func (*Field) component() {}

// ValidationError lists failed fields by state path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = p + " " + e.Fields[p]
	}
	return "invalid form: " + strings.Join(parts, ", ")
}

// Container is a mounted schema with its state.
type Container struct {
	host       Host
	store      *orm.Store
	model      *orm.Model
	record     orm.Record
	components []Component
	fields     []*Field
	groups     []*Group
	state      map[string]any
}

// New mounts components on a container for model. Each component may be
// mounted on one container only.
func New(host Host, store *orm.Store, model *orm.Model, components ...Component) *Container {
	c := &Container{host: host, store: store, model: model, components: components, state: map[string]any{}}
	c.mount(components)
	return c
}

func (c *Container) mount(components []Component) {
	for _, comp := range components {
		switch comp := comp.(type) {
		case *Field:
			c.fields = append(c.fields, comp)
		case *Group:
			if comp.relationship == "" {
				c.mount(comp.Schema)
				continue
			}
			comp.parent = c
			comp.child = &Container{host: c.host, store: c.store, components: comp.Schema, state: map[string]any{}}
			comp.child.mount(comp.Schema)
			c.groups = append(c.groups, comp)
		}
	}
}

func (c *Container) Host() Host               { return c.host }
func (c *Container) Model() *orm.Model        { return c.model }
func (c *Container) Record() orm.Record       { return c.record }
func (c *Container) Components() []Component { return c.components }

// SetRecord points the container at a persisted record, typically right
// after creating it.
func (c *Container) SetRecord(rec orm.Record) {
	c.record = rec
	if rec != nil {
		c.model = rec.Model()
	}
}

// ModelInstance returns the bound record, or an unsaved record of the
// container's model.
func (c *Container) ModelInstance() orm.Record {
	if c.record != nil {
		return c.record
	}
	if c.model == nil || c.store == nil {
		return nil
	}
	return c.store.New(c.model)
}

func (c *Container) driver() TranslatableContentDriver {
	if c.host == nil {
		return nil
	}
	return c.host.TranslatableContentDriver()
}

// Fill replaces the state. A nil data map fills every field with its
// default. Relationship groups then load their state from the related
// record.
func (c *Container) Fill(ctx context.Context, data map[string]any) error {
	c.state = map[string]any{}
	for _, f := range c.fields {
		if data == nil {
			c.state[f.Name] = f.Default
			continue
		}
		c.state[f.Name] = data[f.Name]
	}
	for _, g := range c.groups {
		if err := g.loadFromRelationship(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SetState hydrates user input over the current state. Keys without a
// field are ignored; a relationship group takes a nested map.
func (c *Container) SetState(input map[string]any) {
	for _, f := range c.fields {
		if v, ok := input[f.Name]; ok {
			c.state[f.Name] = v
		}
	}
	for _, g := range c.groups {
		nested, ok := input[g.relationship].(map[string]any)
		if !ok {
			continue
		}
		g.child.SetState(nested)
	}
}

// State returns the form state. The dehydrated state is what the record
// itself is saved from: transient fields and relationship groups are left
// out.
func (c *Container) State(dehydrated bool) map[string]any {
	out := make(map[string]any, len(c.fields)+len(c.groups))
	for _, f := range c.fields {
		if dehydrated && f.Transient {
			continue
		}
		out[f.Name] = c.state[f.Name]
	}
	if dehydrated {
		return out
	}
	for _, g := range c.groups {
		out[g.relationship] = g.child.State(false)
	}
	return out
}

// Validate checks required fields, including those of nested groups.
func (c *Container) Validate() error {
	failed := map[string]string{}
	c.validate("", failed)
	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{Fields: failed}
}

func (c *Container) validate(prefix string, failed map[string]string) {
	for _, f := range c.fields {
		if f.Required && blank(c.state[f.Name]) {
			failed[prefix+f.Name] = "is required"
		}
	}
	for _, g := range c.groups {
		g.child.validate(prefix+g.relationship+".", failed)
	}
}

func blank(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

// SaveRelationships persists every relationship group against the bound
// record. Each group runs its own hook before and after its children.
func (c *Container) SaveRelationships(ctx context.Context) error {
	for _, g := range c.groups {
		if err := g.saveBeforeChildren(ctx); err != nil {
			return fmt.Errorf("save %s: %w", g.relationship, err)
		}
		if err := g.childContainer().SaveRelationships(ctx); err != nil {
			return err
		}
		if err := g.saveAfterChildren(ctx); err != nil {
			return fmt.Errorf("save %s: %w", g.relationship, err)
		}
	}
	return nil
}

// Group returns the relationship group mounted under name, or nil.
func (c *Container) Group(name string) *Group {
	for _, g := range c.groups {
		if g.relationship == name {
			return g
		}
	}
	return nil
}

// FieldView describes one input for rendering.
type FieldView struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Required bool   `json:"required"`
}

// GroupView describes a relationship group for rendering.
type GroupView struct {
	Relationship string      `json:"relationship"`
	Label        string      `json:"label,omitempty"`
	Fields       []FieldView `json:"fields"`
	Groups       []GroupView `json:"groups,omitempty"`
}

// Schema describes the mounted fields and relationship groups.
func (c *Container) Schema() ([]FieldView, []GroupView) {
	fields := make([]FieldView, 0, len(c.fields))
	for _, f := range c.fields {
		fields = append(fields, FieldView{Name: f.Name, Label: f.Label, Required: f.Required})
	}
	var groups []GroupView
	for _, g := range c.groups {
		gf, gg := g.child.Schema()
		groups = append(groups, GroupView{Relationship: g.relationship, Label: g.Label, Fields: gf, Groups: gg})
	}
	return fields, groups
}
