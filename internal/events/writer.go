// Package events is the panel's append-only audit log.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RecordCreated = "record.created"
	RecordUpdated = "record.updated"
)

// ActionEvent names the event of an action outcome, e.g. "action.restore.success".
func ActionEvent(name, outcome string) string {
	return "action." + name + "." + outcome
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

// Event is one audit entry.
type Event struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts" format:"date-time"`
	Type     string `json:"type"`
	Resource string `json:"resource,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	ActorID  string `json:"actor_id"`
	Payload  string `json:"payload_json"`
}

// Append writes an event through ex, or the writer's DB when ex is nil.
func (w Writer) Append(ctx context.Context, ex Execer, evtType, resource, recordID, actorID string, payload Payload) error {
	if ex == nil {
		ex = w.DB
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO panel_events(ts,type,resource,record_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, nullable(resource), nullable(recordID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
