package form

import (
	"context"
	"fmt"

	"panelkit/internal/orm"
)

// Mutator rewrites relationship data on its way in or out of a form.
type Mutator func(data map[string]any) map[string]any

// Resolution is the state of a group's cached related record.
type Resolution int

const (
	// Unresolved means the relationship has not been queried yet.
	Unresolved Resolution = iota
	Present
	Absent
)

func (r Resolution) String() string {
	switch r {
	case Present:
		return "present"
	case Absent:
		return "absent"
	}
	return "unresolved"
}

type cachedRecord struct {
	resolution Resolution
	record     orm.Record
}

// Group nests a schema. Without a relationship it is pure layout and its
// fields share the parent's state. With one, its state lives under the
// relationship name and is read from and saved to the related record.
type Group struct {
	Label  string
	Schema []Component

	relationship       string
	mutateBeforeCreate Mutator
	mutateBeforeFill   Mutator
	mutateBeforeSave   Mutator

	parent  *Container
	child   *Container
	cached  cachedRecord
	created orm.Record
}

func (*Group) component() {}

func NewGroup(schema ...Component) *Group {
	return &Group{Schema: schema}
}

// Relationship entangles the group with the named belongs-to, has-one or
// morph-one relationship of the form's record. It must be called before
// the group is mounted.
func (g *Group) Relationship(name string) *Group {
	g.relationship = name
	return g
}

func (g *Group) MutateRelationshipDataBeforeCreateUsing(fn Mutator) *Group {
	g.mutateBeforeCreate = fn
	return g
}

func (g *Group) MutateRelationshipDataBeforeFillUsing(fn Mutator) *Group {
	g.mutateBeforeFill = fn
	return g
}

func (g *Group) MutateRelationshipDataBeforeSaveUsing(fn Mutator) *Group {
	g.mutateBeforeSave = fn
	return g
}

func (g *Group) RelationshipName() string { return g.relationship }

// Resolution reports whether the related record has been looked up and
// whether it was found.
func (g *Group) Resolution() Resolution { return g.cached.resolution }

// Relation resolves the named relation on the form's record. It
// returns nil when the form has no record or model, or the model does not
// define the relation.
func (g *Group) Relation() orm.Relation {
	if g.relationship == "" || g.parent == nil {
		return nil
	}
	rel, err := orm.Resolve(g.parent.ModelInstance(), g.relationship)
	if err != nil {
		return nil
	}
	return rel
}

// CachedExistingRecord returns the related record, querying it on first
// use. It returns nil when there is none.
func (g *Group) CachedExistingRecord(ctx context.Context) (orm.Record, error) {
	switch g.cached.resolution {
	case Present:
		return g.cached.record, nil
	case Absent:
		return nil, nil
	}
	rel := g.Relation()
	if rel == nil {
		g.cached = cachedRecord{resolution: Absent}
		return nil, nil
	}
	rec, err := rel.Results(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", g.relationship, err)
	}
	if rec == nil || !rec.Exists() {
		g.cached = cachedRecord{resolution: Absent}
		return nil, nil
	}
	g.cached = cachedRecord{resolution: Present, record: rec}
	return rec, nil
}

// ClearCachedExistingRecord forgets the related record so the next fill
// or save queries it again.
func (g *Group) ClearCachedExistingRecord() {
	g.cached = cachedRecord{}
	g.created = nil
}

// ChildContainer returns the nested container, pointed at the related
// record when there is one.
func (g *Group) ChildContainer() *Container {
	return g.childContainer()
}

func (g *Group) childContainer() *Container {
	c := g.child
	switch {
	case g.cached.resolution == Present:
		c.record = g.cached.record
	case g.created != nil:
		c.record = g.created
	default:
		c.record = nil
	}
	c.model = nil
	if c.record != nil {
		c.model = c.record.Model()
	} else if rel := g.Relation(); rel != nil {
		c.model = rel.Related()
	}
	return c
}

func (g *Group) loadFromRelationship(ctx context.Context) error {
	g.ClearCachedExistingRecord()
	return g.FillFromRelationship(ctx)
}

// FillFromRelationship fills the nested container from the related record,
// or with defaults when there is none.
func (g *Group) FillFromRelationship(ctx context.Context) error {
	rec, err := g.CachedExistingRecord(ctx)
	if err != nil {
		return err
	}
	child := g.childContainer()
	if rec == nil {
		return child.Fill(ctx, nil)
	}
	return child.Fill(ctx, apply(g.mutateBeforeFill, g.stateFromRecord(rec)))
}

func (g *Group) stateFromRecord(rec orm.Record) map[string]any {
	if d := g.parent.driver(); d != nil {
		return d.RecordAttributes(rec)
	}
	return rec.Attributes()
}

func (g *Group) makeRecord(rel orm.Relation, data map[string]any) orm.Record {
	if d := g.parent.driver(); d != nil {
		return d.MakeRecord(rel.Related(), data)
	}
	rec := rel.NewRelated()
	rec.Fill(data)
	return rec
}

// saveBeforeChildren creates a missing has-one or morph-one record through
// the relationship so nested relationships have a parent to attach to.
func (g *Group) saveBeforeChildren(ctx context.Context) error {
	if g.parent == nil || g.parent.record == nil {
		return nil
	}
	rel := g.Relation()
	if rel == nil || rel.Kind() == orm.BelongsToKind {
		return nil
	}
	rec, err := g.CachedExistingRecord(ctx)
	if err != nil || rec != nil || g.created != nil {
		return err
	}
	saver, ok := rel.(interface {
		Save(ctx context.Context, rec orm.Record) error
	})
	if !ok {
		return nil
	}
	data := apply(g.mutateBeforeCreate, g.child.State(true))
	rec = g.makeRecord(rel, data)
	if err := saver.Save(ctx, rec); err != nil {
		return err
	}
	g.created = rec
	return nil
}

// saveAfterChildren updates the related record in place, or creates and
// associates a missing belongs-to owner.
func (g *Group) saveAfterChildren(ctx context.Context) error {
	if g.parent == nil || g.parent.record == nil {
		return nil
	}
	rel := g.Relation()
	if rel == nil {
		return nil
	}
	data := g.child.State(true)
	rec, err := g.CachedExistingRecord(ctx)
	if err != nil {
		return err
	}
	if rec != nil {
		data = apply(g.mutateBeforeSave, data)
		if d := g.parent.driver(); d != nil {
			return d.UpdateRecord(ctx, rec, data)
		}
		rec.Fill(data)
		return rec.Save(ctx)
	}
	if g.created != nil {
		g.cached = cachedRecord{resolution: Present, record: g.created}
		g.created = nil
		return nil
	}
	owner, ok := rel.(*orm.BelongsTo)
	if !ok {
		return nil
	}
	rec = g.makeRecord(rel, apply(g.mutateBeforeCreate, data))
	if err := rec.Save(ctx); err != nil {
		return err
	}
	owner.Associate(rec)
	if err := owner.Parent().Save(ctx); err != nil {
		return err
	}
	g.cached = cachedRecord{resolution: Present, record: rec}
	return nil
}

func apply(fn Mutator, data map[string]any) map[string]any {
	if fn == nil {
		return data
	}
	return fn(data)
}
