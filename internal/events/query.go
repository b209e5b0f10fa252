package events

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	Type     string
	Resource string
	RecordID string
	// Before returns events with smaller ids, for paging backwards.
	Before int64
	Limit  int
}

// List returns matching events, newest first.
func (w Writer) List(ctx context.Context, f Filter) ([]Event, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Resource != "" {
		clauses = append(clauses, "resource=?")
		args = append(args, f.Resource)
	}
	if f.RecordID != "" {
		clauses = append(clauses, "record_id=?")
		args = append(args, f.RecordID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,resource,record_id,actor_id,payload_json FROM panel_events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	return w.query(ctx, query, args...)
}

// After returns up to limit events with ids greater than afterID, oldest
// first.
func (w Writer) After(ctx context.Context, afterID int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return w.query(ctx, `SELECT id,ts,type,resource,record_id,actor_id,payload_json FROM panel_events WHERE id>? ORDER BY id ASC LIMIT ?`, afterID, limit)
}

// LatestID returns the id of the newest event, 0 when there is none.
func (w Writer) LatestID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := w.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM panel_events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (w Writer) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := w.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		var resource, recordID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &resource, &recordID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.Resource = resource.String
		e.RecordID = recordID.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}
