package orm

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownRelation = errors.New("unknown relationship")

// Relation is a resolved singular relationship of one parent record.
type Relation interface {
	Kind() Kind
	Name() string
	Parent() Record
	Related() *Model
	// NewRelated returns an unsaved record of the related model.
	NewRelated() Record
	// Results returns the related record, or nil when there is none.
	Results(ctx context.Context) (Record, error)
}

// Resolve returns the relationship called name on parent.
func Resolve(parent Record, name string) (Relation, error) {
	if parent == nil {
		return nil, ErrDetached
	}
	rb, ok := parent.(rowBacked)
	if !ok || rb.base().store == nil {
		return nil, ErrDetached
	}
	def, ok := parent.Model().relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, parent.Model().Name, name)
	}
	rel := relation{name: name, parent: parent, related: def.related, store: rb.base().store}
	switch def.kind {
	case BelongsToKind:
		return &BelongsTo{relation: rel, foreignKey: def.foreignKey}, nil
	case HasOneKind:
		return &HasOne{relation: rel, foreignKey: def.foreignKey}, nil
	case MorphOneKind:
		return &MorphOne{relation: rel, morphName: def.morphName}, nil
	}
	return nil, fmt.Errorf("%w: %s.%s has kind %q", ErrUnknownRelation, parent.Model().Name, name, def.kind)
}

type relation struct {
	name    string
	parent  Record
	related *Model
	store   *Store
}

func (r relation) Name() string       { return r.name }
func (r relation) Parent() Record     { return r.parent }
func (r relation) Related() *Model    { return r.related }
func (r relation) NewRelated() Record { return r.store.New(r.related) }

func (r relation) first(ctx context.Context, where map[string]any) (Record, error) {
	rec, err := r.store.First(ctx, r.related, where)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// BelongsTo links a parent holding the foreign key to its owner.
type BelongsTo struct {
	relation
	foreignKey string
}

func (b *BelongsTo) Kind() Kind         { return BelongsToKind }
func (b *BelongsTo) ForeignKey() string { return b.foreignKey }

func (b *BelongsTo) Results(ctx context.Context) (Record, error) {
	key := asString(b.parent.Get(b.foreignKey))
	if key == "" {
		return nil, nil
	}
	return b.first(ctx, map[string]any{"id": key})
}

// Associate points the parent's foreign key at rec. The parent is not saved.
func (b *BelongsTo) Associate(rec Record) {
	b.parent.Set(b.foreignKey, rec.ID())
}

// Dissociate clears the parent's foreign key. The parent is not saved.
func (b *BelongsTo) Dissociate() {
	b.parent.Set(b.foreignKey, nil)
}

// HasOne links a parent to the one related row holding its key.
type HasOne struct {
	relation
	foreignKey string
}

func (h *HasOne) Kind() Kind         { return HasOneKind }
func (h *HasOne) ForeignKey() string { return h.foreignKey }

func (h *HasOne) Results(ctx context.Context) (Record, error) {
	if !h.parent.Exists() {
		return nil, nil
	}
	return h.first(ctx, map[string]any{h.foreignKey: h.parent.ID()})
}

// Save sets the foreign key on rec and persists it.
func (h *HasOne) Save(ctx context.Context, rec Record) error {
	if !h.parent.Exists() {
		return fmt.Errorf("save %s through %s: parent not persisted", rec.Model().Name, h.name)
	}
	rec.Set(h.foreignKey, h.parent.ID())
	return rec.Save(ctx)
}

// MorphOne is HasOne with a type discriminator next to the key.
type MorphOne struct {
	relation
	morphName string
}

func (m *MorphOne) Kind() Kind         { return MorphOneKind }
func (m *MorphOne) TypeColumn() string { return m.morphName + "_type" }
func (m *MorphOne) IDColumn() string   { return m.morphName + "_id" }

func (m *MorphOne) Results(ctx context.Context) (Record, error) {
	if !m.parent.Exists() {
		return nil, nil
	}
	return m.first(ctx, map[string]any{
		m.TypeColumn(): m.parent.Model().Name,
		m.IDColumn():   m.parent.ID(),
	})
}

// Save sets the type and key columns on rec and persists it.
func (m *MorphOne) Save(ctx context.Context, rec Record) error {
	if !m.parent.Exists() {
		return fmt.Errorf("save %s through %s: parent not persisted", rec.Model().Name, m.name)
	}
	rec.Set(m.TypeColumn(), m.parent.Model().Name)
	rec.Set(m.IDColumn(), m.parent.ID())
	return rec.Save(ctx)
}
