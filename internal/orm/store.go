package orm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrDetached = errors.New("record is not bound to a store")
)

// ValidationError reports a required column left empty.
type ValidationError struct {
	Model  string
	Column string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s.%s is required", e.Model, e.Column)
}

// TrashedFilter selects how soft-deleted rows are treated by queries.
type TrashedFilter int

const (
	WithoutTrashed TrashedFilter = iota
	WithTrashed
	OnlyTrashed
)

// ListOptions page and filter a List query.
type ListOptions struct {
	Trashed TrashedFilter
	Where   map[string]any
	Limit   int
	Offset  int
}

// Conn is satisfied by *sql.DB and *sql.Tx.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists rows of any Model.
type Store struct {
	DB  *sql.DB
	Now func() time.Time

	tx *sql.Tx
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// WithTx returns a store that runs every statement in tx. Records it
// loads or creates stay bound to tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{DB: s.DB, Now: s.Now, tx: tx}
}

// Conn returns the transaction the store runs in, or its DB.
func (s *Store) Conn() Conn {
	if s.tx != nil {
		return s.tx
	}
	return s.DB
}

func (s *Store) now() string {
	if s.Now != nil {
		return s.Now().UTC().Format(time.RFC3339Nano)
	}
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// New returns an unsaved record of m bound to the store.
func (s *Store) New(m *Model) Record {
	return s.wrap(&Row{model: m, store: s, attrs: map[string]any{}})
}

func (s *Store) wrap(r *Row) Record {
	if r.model.SoftDeletes {
		return &SoftRow{Row: r}
	}
	return r
}

// Find returns the row with id, ignoring soft-deleted rows.
func (s *Store) Find(ctx context.Context, m *Model, id string) (Record, error) {
	return s.First(ctx, m, map[string]any{"id": id})
}

// FindWithTrashed returns the row with id, soft-deleted or not.
func (s *Store) FindWithTrashed(ctx context.Context, m *Model, id string) (Record, error) {
	rows, err := s.List(ctx, m, ListOptions{Trashed: WithTrashed, Where: map[string]any{"id": id}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// First returns the newest non-trashed row matching where.
func (s *Store) First(ctx context.Context, m *Model, where map[string]any) (Record, error) {
	rows, err := s.List(ctx, m, ListOptions{Where: where, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) List(ctx context.Context, m *Model, opts ListOptions) ([]Record, error) {
	where, args, err := whereClause(m, opts.Where, opts.Trashed)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + strings.Join(m.selectColumns(), ",") + ` FROM ` + m.Table + where + ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}
	rows, err := s.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", m.Table, err)
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := s.scan(m, rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *Store) Count(ctx context.Context, m *Model, trashed TrashedFilter) (int, error) {
	where, args, err := whereClause(m, nil, trashed)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM `+m.Table+where, args...).Scan(&n)
	return n, err
}

func whereClause(m *Model, where map[string]any, trashed TrashedFilter) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !m.queryable(k) {
			return "", nil, fmt.Errorf("%s has no column %s", m.Name, k)
		}
		if where[k] == nil {
			clauses = append(clauses, k+" IS NULL")
			continue
		}
		clauses = append(clauses, k+"=?")
		args = append(args, dbValue(where[k]))
	}
	if m.SoftDeletes {
		switch trashed {
		case WithoutTrashed:
			clauses = append(clauses, "deleted_at IS NULL")
		case OnlyTrashed:
			clauses = append(clauses, "deleted_at IS NOT NULL")
		}
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (s *Store) scan(m *Model, rows *sql.Rows) (Record, error) {
	cols := m.selectColumns()
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	r := &Row{model: m, store: s, attrs: map[string]any{}, exists: true}
	var deletedAt string
	for i, col := range cols {
		v := vals[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		switch col {
		case "id":
			r.id = asString(v)
		case "created_at":
			r.createdAt = asString(v)
		case "updated_at":
			r.updatedAt = asString(v)
		case "deleted_at":
			deletedAt = asString(v)
		default:
			r.attrs[col] = v
		}
	}
	if m.SoftDeletes {
		return &SoftRow{Row: r, deletedAt: deletedAt}, nil
	}
	return r, nil
}

func (s *Store) validate(r *Row) error {
	for _, col := range r.model.Required {
		v := r.attrs[col]
		if v == nil {
			return ValidationError{Model: r.model.Name, Column: col}
		}
		if str, ok := v.(string); ok && strings.TrimSpace(str) == "" {
			return ValidationError{Model: r.model.Name, Column: col}
		}
		if r.model.IsTranslatable(col) && len(DecodeTranslations(v)) == 0 {
			return ValidationError{Model: r.model.Name, Column: col}
		}
	}
	return nil
}

func (s *Store) save(ctx context.Context, r *Row) error {
	if err := s.validate(r); err != nil {
		return err
	}
	if r.exists {
		return s.update(ctx, r)
	}
	return s.insert(ctx, r)
}

func (s *Store) insert(ctx context.Context, r *Row) error {
	if r.id == "" {
		r.id = uuid.NewString()
	}
	now := s.now()
	cols := []string{"id"}
	args := []any{r.id}
	for _, col := range r.model.Columns {
		cols = append(cols, col)
		args = append(args, dbValue(r.attrs[col]))
	}
	cols = append(cols, "created_at", "updated_at")
	args = append(args, now, now)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	query := fmt.Sprintf(`INSERT INTO %s(%s) VALUES (%s)`, r.model.Table, strings.Join(cols, ","), placeholders)
	if _, err := s.Conn().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.model.Table, err)
	}
	r.exists = true
	r.createdAt = now
	r.updatedAt = now
	return nil
}

func (s *Store) update(ctx context.Context, r *Row) error {
	now := s.now()
	var (
		fields []string
		args   []any
	)
	for _, col := range r.model.Columns {
		fields = append(fields, col+"=?")
		args = append(args, dbValue(r.attrs[col]))
	}
	fields = append(fields, "updated_at=?")
	args = append(args, now, r.id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id=?`, r.model.Table, strings.Join(fields, ","))
	res, err := s.Conn().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.model.Table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.updatedAt = now
	return nil
}

func (s *Store) softDelete(ctx context.Context, r *SoftRow) error {
	if !r.exists {
		return ErrNotFound
	}
	now := s.now()
	res, err := s.Conn().ExecContext(ctx, `UPDATE `+r.model.Table+` SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`, now, now, r.id)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", r.model.Table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.deletedAt = now
	r.updatedAt = now
	return nil
}

func (s *Store) restore(ctx context.Context, r *SoftRow) error {
	if !r.exists {
		return ErrNotFound
	}
	now := s.now()
	res, err := s.Conn().ExecContext(ctx, `UPDATE `+r.model.Table+` SET deleted_at=NULL, updated_at=? WHERE id=?`, now, r.id)
	if err != nil {
		return fmt.Errorf("restore %s: %w", r.model.Table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.deletedAt = ""
	r.updatedAt = now
	return nil
}

func (s *Store) hardDelete(ctx context.Context, r *Row) error {
	if !r.exists {
		return ErrNotFound
	}
	res, err := s.Conn().ExecContext(ctx, `DELETE FROM `+r.model.Table+` WHERE id=?`, r.id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.model.Table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.exists = false
	return nil
}

func dbValue(v any) any {
	switch t := v.(type) {
	case nil, string, int, int64, float64, bool, []byte, time.Time:
		return t
	case map[string]string, map[string]any, []any, []string:
		data, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
