// Package orm is a small active-record layer over database/sql: models
// describe tables, rows carry attributes and persist themselves through a
// Store, and singular relationships (belongs-to, has-one, morph-one) link
// rows of different models.
package orm

import (
	"fmt"
	"sort"
)

// Kind identifies a singular relationship type.
type Kind string

const (
	BelongsToKind Kind = "belongs_to"
	HasOneKind    Kind = "has_one"
	MorphOneKind  Kind = "morph_one"
)

type relationDef struct {
	kind    Kind
	related *Model
	// foreignKey lives on the parent for belongs-to and on the related
	// model for has-one.
	foreignKey string
	morphName  string
}

// Model describes one table. Every table has a text primary key "id" and
// created_at/updated_at columns; soft-deleting tables also have deleted_at.
type Model struct {
	// Name is the morph class stored in morph-one type columns.
	Name         string
	Table        string
	Columns      []string
	Required     []string
	SoftDeletes  bool
	TitleColumn  string
	Translatable []string

	relations map[string]relationDef
}

// BelongsTo declares that m holds foreignKey pointing at related.
func (m *Model) BelongsTo(name string, related *Model, foreignKey string) *Model {
	return m.addRelation(name, relationDef{kind: BelongsToKind, related: related, foreignKey: foreignKey})
}

// HasOne declares that related holds foreignKey pointing back at m.
func (m *Model) HasOne(name string, related *Model, foreignKey string) *Model {
	return m.addRelation(name, relationDef{kind: HasOneKind, related: related, foreignKey: foreignKey})
}

// MorphOne declares that related holds <morphName>_type and <morphName>_id
// pointing back at m.
func (m *Model) MorphOne(name string, related *Model, morphName string) *Model {
	return m.addRelation(name, relationDef{kind: MorphOneKind, related: related, morphName: morphName})
}

func (m *Model) addRelation(name string, def relationDef) *Model {
	if m.relations == nil {
		m.relations = map[string]relationDef{}
	}
	if _, exists := m.relations[name]; exists {
		panic(fmt.Sprintf("orm: relation %s.%s declared twice", m.Name, name))
	}
	m.relations[name] = def
	return m
}

// Relations returns the declared relationship names in sorted order.
func (m *Model) Relations() []string {
	out := make([]string, 0, len(m.relations))
	for name := range m.relations {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasColumn reports whether col is a fillable column of the model.
func (m *Model) HasColumn(col string) bool {
	for _, c := range m.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// IsTranslatable reports whether col stores per-locale values.
func (m *Model) IsTranslatable(col string) bool {
	for _, c := range m.Translatable {
		if c == col {
			return true
		}
	}
	return false
}

func (m *Model) selectColumns() []string {
	cols := make([]string, 0, len(m.Columns)+4)
	cols = append(cols, "id")
	cols = append(cols, m.Columns...)
	cols = append(cols, "created_at", "updated_at")
	if m.SoftDeletes {
		cols = append(cols, "deleted_at")
	}
	return cols
}

func (m *Model) queryable(col string) bool {
	switch col {
	case "id", "created_at", "updated_at":
		return true
	case "deleted_at":
		return m.SoftDeletes
	}
	return m.HasColumn(col)
}
