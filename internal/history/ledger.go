// Package history keeps a ledger of synchronization runs in SQLite so that past
// decisions (what changed, what was installed and why) can be inspected later.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
)

// Ledger persists and retrieves run events.
type Ledger interface {
	Append(ctx context.Context, e Event) error
	ByRun(ctx context.Context, runID string) ([]Event, error)
	// Recent returns the newest limit events in chronological order.
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

// NopLedger discards everything.
type NopLedger struct{}

func (NopLedger) Append(context.Context, Event) error            { return nil }
func (NopLedger) ByRun(context.Context, string) ([]Event, error) { return nil, nil }
func (NopLedger) Recent(context.Context, int) ([]Event, error)   { return nil, nil }
func (NopLedger) Close() error                                   { return nil }

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the ledger at path. ":memory:" gives a throwaway database.
func Open(path string) (*SQLiteLedger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.HistoryError("could not create ledger directory").WithCause(err).WithContext("path", path).Build()
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.HistoryError("could not open ledger database").WithCause(err).WithContext("path", path).Build()
	}
	// A single connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.HistoryError("failed to initialize ledger schema").WithCause(err).Build()
	}
	return l, nil
}

func (l *SQLiteLedger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_project ON events(project);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append adds a new event to the ledger.
func (l *SQLiteLedger) Append(ctx context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var metadataJSON []byte
	if e.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := []byte(e.Payload)
	if payload == nil {
		payload = []byte("{}")
	}

	_, err := l.db.ExecContext(ctx,
		"INSERT INTO events (run_id, event_type, timestamp, project, payload, metadata) VALUES (?, ?, ?, ?, ?, ?)",
		e.RunID, e.Type, ts.UnixMilli(), e.Project, payload, metadataJSON,
	)
	if err != nil {
		return errors.HistoryError("failed to append event").WithCause(err).WithContext("type", e.Type).Build()
	}
	return nil
}

// ByRun retrieves all events of one run.
func (l *SQLiteLedger) ByRun(ctx context.Context, runID string) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.QueryContext(ctx,
		"SELECT id, run_id, event_type, timestamp, project, payload, metadata FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.QueryContext(ctx,
		"SELECT id, run_id, event_type, timestamp, project, payload, metadata FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			e            Event
			tsMillis     int64
			payload      []byte
			metadataJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &tsMillis, &e.Project, &payload, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.UnixMilli(tsMillis)
		e.Payload = json.RawMessage(payload)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}
