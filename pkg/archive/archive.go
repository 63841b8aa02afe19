// Package archive persists crew session history in SQLite: run records,
// the semantic event stream, and periodic ledger snapshots. It backs the
// `crewforge ledger history` command and post-mortem inspection of a run.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one crew session.
type Run struct {
	RunID      string
	Agents     []string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Event is one archived semantic event.
type Event struct {
	RunID     string
	Type      string
	Agent     string
	TaskID    string
	Payload   map[string]any
	CreatedAt time.Time
}

// EventFilter narrows Events queries. Zero values match everything.
type EventFilter struct {
	RunID string
	Agent string
	Type  string
	Limit int
}

// Store is a SQLite-backed session archive.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path and ensures schema.
// Use ":memory:" for an ephemeral archive.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("archive path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing database handle and ensures schema.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureArchiveSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a crew session.
func (s *Store) BeginRun(ctx context.Context, runID string, agents []string) error {
	names, err := json.Marshal(agents)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crew_runs (run_id, agents_json, status, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET agents_json = excluded.agents_json
	`, runID, string(names), RunStatusRunning, time.Now().UTC())
	return err
}

// FinishRun records the terminal status of a crew session.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crew_runs SET status = ?, finished_at = ? WHERE run_id = ?
	`, status, time.Now().UTC(), runID)
	return err
}

// Runs returns the most recent sessions, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, agents_json, status, started_at, finished_at
		FROM crew_runs ORDER BY started_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			agentsJSON string
			started    sql.NullTime
			finished   sql.NullTime
		)
		if err := rows.Scan(&run.RunID, &agentsJSON, &run.Status, &started, &finished); err != nil {
			return nil, err
		}
		if agentsJSON != "" {
			if err := json.Unmarshal([]byte(agentsJSON), &run.Agents); err != nil {
				return nil, err
			}
		}
		if started.Valid {
			run.StartedAt = started.Time
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordEvent appends one event to the archive.
func (s *Store) RecordEvent(ctx context.Context, event Event) error {
	payload, err := encodePayload(event.Payload)
	if err != nil {
		return err
	}
	when := event.CreatedAt
	if when.IsZero() {
		when = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crew_events (run_id, event_type, agent, task_id, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.RunID, event.Type, event.Agent, event.TaskID, string(payload), when.UTC())
	return err
}

// Events returns archived events matching the filter, oldest first.
func (s *Store) Events(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := `
		SELECT run_id, event_type, agent, task_id, payload_json, created_at
		FROM crew_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.RunID != "" {
		addFilter("run_id = ?", filter.RunID)
	}
	if filter.Agent != "" {
		addFilter("agent = ?", filter.Agent)
	}
	if filter.Type != "" {
		addFilter("event_type = ?", filter.Type)
	}
	query += where + " ORDER BY created_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event       Event
			payloadJSON string
			created     sql.NullTime
		)
		if err := rows.Scan(
			&event.RunID,
			&event.Type,
			&event.Agent,
			&event.TaskID,
			&payloadJSON,
			&created,
		); err != nil {
			return nil, err
		}
		if payloadJSON != "" && payloadJSON != "null" {
			if err := json.Unmarshal([]byte(payloadJSON), &event.Payload); err != nil {
				return nil, err
			}
		}
		if created.Valid {
			event.CreatedAt = created.Time
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// SnapshotLedger stores the raw ledger document for a run.
func (s *Store) SnapshotLedger(ctx context.Context, runID string, document any) error {
	raw, err := json.Marshal(document)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_snapshots (run_id, document_json, created_at)
		VALUES (?, ?, ?)
	`, runID, string(raw), time.Now().UTC())
	return err
}

// LatestLedger returns the newest stored ledger document for a run, or
// sql.ErrNoRows when none exists.
func (s *Store) LatestLedger(ctx context.Context, runID string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT document_json FROM ledger_snapshots
		WHERE run_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, runID).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func encodePayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("null"), nil
	}
	return json.Marshal(payload)
}

func ensureArchiveSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS crew_runs (
			run_id TEXT PRIMARY KEY,
			agents_json TEXT,
			status TEXT NOT NULL,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS crew_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			agent TEXT,
			task_id TEXT,
			payload_json TEXT,
			created_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS ledger_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			document_json TEXT NOT NULL,
			created_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_crew_events_run ON crew_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_crew_events_agent ON crew_events(agent);
		CREATE INDEX IF NOT EXISTS idx_ledger_snapshots_run ON ledger_snapshots(run_id);
	`)
	return err
}
