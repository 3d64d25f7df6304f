// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps db and ensures the schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("audit: db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("audit: schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores event.
func (s *SQLiteStore) Record(ctx context.Context, event Event) error {
	step, err := encodeStep(event.Step)
	if err != nil {
		return fmt.Errorf("audit: encode step: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_audit_events (
			task_id, kind, subject, run_id, generation, transition, applied,
			status, step_json, text_length, error_text, at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.TaskID,
		event.Kind,
		event.Subject,
		event.RunID,
		int64(event.Generation),
		event.Transition,
		event.Applied,
		event.Status,
		step,
		event.TextLength,
		event.Error,
		normalizeTime(event.At),
	)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// List returns events matching filter in record order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT task_id, kind, subject, run_id, generation, transition, applied,
			status, step_json, text_length, error_text, at
		FROM task_audit_events
	`
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		where = append(where, clause)
		args = append(args, value)
	}
	if filter.TaskID != "" {
		add("task_id = ?", filter.TaskID)
	}
	if filter.RunID != "" {
		add("run_id = ?", filter.RunID)
	}
	if filter.Transition != "" {
		add("transition = ?", filter.Transition)
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev         Event
			generation int64
			step       sql.NullString
			errText    sql.NullString
			at         sql.NullTime
		)
		if err := rows.Scan(
			&ev.TaskID,
			&ev.Kind,
			&ev.Subject,
			&ev.RunID,
			&generation,
			&ev.Transition,
			&ev.Applied,
			&ev.Status,
			&step,
			&ev.TextLength,
			&errText,
			&at,
		); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		ev.Generation = uint64(generation)
		ev.Step = decodeStep(step.String)
		ev.Error = errText.String
		if at.Valid {
			ev.At = at.Time.UTC()
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return events, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS task_audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			run_id TEXT,
			generation INTEGER NOT NULL,
			transition TEXT NOT NULL,
			applied BOOLEAN NOT NULL,
			status TEXT NOT NULL,
			step_json TEXT,
			text_length INTEGER NOT NULL DEFAULT 0,
			error_text TEXT,
			at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_task_audit_task ON task_audit_events(task_id);
		CREATE INDEX IF NOT EXISTS idx_task_audit_run ON task_audit_events(run_id);
	`)
	return err
}
