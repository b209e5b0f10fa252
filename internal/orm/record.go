package orm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Record is a single persisted (or not yet persisted) row.
type Record interface {
	Model() *Model
	ID() string
	Exists() bool
	Get(column string) any
	Set(column string, value any)
	// Fill assigns every known column in data; unknown keys are ignored.
	Fill(data map[string]any)
	// Attributes returns a copy of the row as a flat map, including id and
	// timestamps.
	Attributes() map[string]any
	Title() string
	Save(ctx context.Context) error
	Delete(ctx context.Context) error
}

// Trashable records can report whether they are soft-deleted.
type Trashable interface {
	Trashed() bool
}

// Restorable records can undo a soft delete.
type Restorable interface {
	Restore(ctx context.Context) error
}

// ForceDeletable records can be removed permanently.
type ForceDeletable interface {
	ForceDelete(ctx context.Context) error
}

// SoftDeletable is implemented by rows of models with SoftDeletes set.
type SoftDeletable interface {
	Record
	Trashable
	Restorable
	ForceDeletable
}

type rowBacked interface {
	base() *Row
}

// Row is the Record implementation for every model.
type Row struct {
	model     *Model
	store     *Store
	id        string
	attrs     map[string]any
	exists    bool
	createdAt string
	updatedAt string
}

func (r *Row) base() *Row { return r }

func (r *Row) Model() *Model { return r.model }
func (r *Row) ID() string    { return r.id }
func (r *Row) Exists() bool  { return r.exists }

func (r *Row) Get(column string) any {
	switch column {
	case "id":
		return r.id
	case "created_at":
		return r.createdAt
	case "updated_at":
		return r.updatedAt
	}
	return r.attrs[column]
}

func (r *Row) Set(column string, value any) {
	if column == "id" && !r.exists {
		if s, ok := value.(string); ok {
			r.id = s
		}
		return
	}
	if !r.model.HasColumn(column) {
		return
	}
	if r.attrs == nil {
		r.attrs = map[string]any{}
	}
	r.attrs[column] = value
}

func (r *Row) Fill(data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "id" {
			continue
		}
		r.Set(k, data[k])
	}
}

func (r *Row) Attributes() map[string]any {
	out := make(map[string]any, len(r.model.Columns)+3)
	out["id"] = r.id
	for _, col := range r.model.Columns {
		out[col] = r.attrs[col]
	}
	out["created_at"] = r.createdAt
	out["updated_at"] = r.updatedAt
	return out
}

func (r *Row) Title() string {
	col := r.model.TitleColumn
	if col == "" {
		return r.id
	}
	v := r.attrs[col]
	if r.model.IsTranslatable(col) {
		translations := DecodeTranslations(v)
		locales := make([]string, 0, len(translations))
		for locale := range translations {
			locales = append(locales, locale)
		}
		sort.Strings(locales)
		for _, locale := range locales {
			if translations[locale] != "" {
				return translations[locale]
			}
		}
		return r.id
	}
	if v == nil {
		return r.id
	}
	return fmt.Sprint(v)
}

func (r *Row) Save(ctx context.Context) error {
	if r.store == nil {
		return ErrDetached
	}
	return r.store.save(ctx, r)
}

func (r *Row) Delete(ctx context.Context) error {
	if r.store == nil {
		return ErrDetached
	}
	return r.store.hardDelete(ctx, r)
}

// SoftRow is a Row of a soft-deleting model.
type SoftRow struct {
	*Row
	deletedAt string
}

func (r *SoftRow) Trashed() bool { return r.deletedAt != "" }

func (r *SoftRow) Get(column string) any {
	if column == "deleted_at" {
		if r.deletedAt == "" {
			return nil
		}
		return r.deletedAt
	}
	return r.Row.Get(column)
}

func (r *SoftRow) Attributes() map[string]any {
	out := r.Row.Attributes()
	out["deleted_at"] = r.Get("deleted_at")
	return out
}

// Delete soft-deletes the row.
func (r *SoftRow) Delete(ctx context.Context) error {
	if r.store == nil {
		return ErrDetached
	}
	return r.store.softDelete(ctx, r)
}

func (r *SoftRow) Restore(ctx context.Context) error {
	if r.store == nil {
		return ErrDetached
	}
	return r.store.restore(ctx, r)
}

func (r *SoftRow) ForceDelete(ctx context.Context) error {
	if r.store == nil {
		return ErrDetached
	}
	return r.store.hardDelete(ctx, r.Row)
}

// DecodeTranslations reads a translatable column value stored as a JSON
// object of locale to text. A plain string is returned under the empty
// locale.
func DecodeTranslations(v any) map[string]string {
	var raw string
	switch t := v.(type) {
	case nil:
		return map[string]string{}
	case string:
		raw = t
	case []byte:
		raw = string(t)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, val := range t {
			if val != nil {
				out[k] = fmt.Sprint(val)
			}
		}
		return out
	default:
		return map[string]string{"": fmt.Sprint(v)}
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		out := map[string]string{}
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	if trimmed == "" {
		return map[string]string{}
	}
	return map[string]string{"": raw}
}

// EncodeTranslations is the inverse of DecodeTranslations.
func EncodeTranslations(translations map[string]string) string {
	if len(translations) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(translations)
	return string(data)
}
