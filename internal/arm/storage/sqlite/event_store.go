// Package sqlite persists safety events to a SQLite database. It is an
// adapter, not a domain layer: one optional subscriber on the event bus,
// for hosts that want an offline record of why each event fired.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/arm.monitor/internal/arm"
)

const schema = `
CREATE TABLE IF NOT EXISTS safety_events (
	event_id      TEXT PRIMARY KEY,
	monitor       TEXT NOT NULL,
	severity      TEXT NOT NULL,
	message       TEXT NOT NULL,
	ts_unix_nanos INTEGER NOT NULL,
	joints_json   TEXT NOT NULL,
	payload_json  TEXT
);
CREATE INDEX IF NOT EXISTS idx_safety_events_ts ON safety_events(ts_unix_nanos);
CREATE INDEX IF NOT EXISTS idx_safety_events_monitor ON safety_events(monitor);
`

// EventStore writes safety events to a SQLite database.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates the schema if needed and returns a store over
// the given database handle. The caller owns the handle's lifecycle.
func NewEventStore(db *sql.DB) (*EventStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create safety_events schema: %w", err)
	}
	return &EventStore{db: db}, nil
}

// InsertEvent persists one event. The joint snapshot and the typed
// payload are stored as JSON so offline tooling can reconstruct the full
// numeric context.
func (s *EventStore) InsertEvent(ev arm.SafetyEvent) error {
	joints, err := json.Marshal(ev.Joints)
	if err != nil {
		return fmt.Errorf("marshal joints: %w", err)
	}
	var payload []byte
	if ev.Payload != nil {
		payload, err = json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	query := `
		INSERT INTO safety_events (
			event_id, monitor, severity, message, ts_unix_nanos, joints_json, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query,
		ev.ID,
		ev.Monitor,
		string(ev.Severity),
		ev.Message,
		ev.Timestamp.UnixNano(),
		string(joints),
		string(payload),
	); err != nil {
		return fmt.Errorf("insert safety event: %w", err)
	}
	return nil
}

// StoredEvent is one persisted row.
type StoredEvent struct {
	ID          string
	Monitor     string
	Severity    string
	Message     string
	TSUnixNanos int64
	JointsJSON  string
	PayloadJSON string
}

// RecentEvents returns up to limit events, newest first.
func (s *EventStore) RecentEvents(limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT event_id, monitor, severity, message, ts_unix_nanos, joints_json, COALESCE(payload_json, '')
		FROM safety_events ORDER BY ts_unix_nanos DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query safety events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(&ev.ID, &ev.Monitor, &ev.Severity, &ev.Message, &ev.TSUnixNanos, &ev.JointsJSON, &ev.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan safety event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Run consumes events from a bus subscription until the context is
// cancelled or the channel closes, persisting each one. Insert failures
// are logged and skipped so a wedged disk cannot stall the subscription.
func (s *EventStore) Run(ctx context.Context, events <-chan arm.SafetyEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.InsertEvent(ev); err != nil {
				arm.Opsf("failed to persist safety event %s: %v", ev.ID, err)
			}
		}
	}
}
