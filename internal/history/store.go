// Package history persists generator step outcomes in a SQLite ledger.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS step_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	step_id TEXT NOT NULL,
	status TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	input_digest TEXT NOT NULL,
	script_digest TEXT NOT NULL,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS step_runs_step_status ON step_runs (step_id, status, id);`

const (
	DefaultDir  = ".genctl"
	DefaultFile = "history.db"
)

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

var ErrStoreClosed = errors.New("history: store is closed")

// StepRecord is one generator invocation outcome.
type StepRecord struct {
	RunID        string
	StepID       string
	Status       string
	ExitCode     int32
	InputDigest  string
	ScriptDigest string
	StartedAt    time.Time
	Duration     time.Duration
}

// Store is the SQLite-backed ledger.
type Store struct {
	db *sql.DB
}

// DefaultPath returns <workingDir>/.genctl/history.db.
func DefaultPath(workingDir string) string {
	return filepath.Join(workingDir, DefaultDir, DefaultFile)
}

// Open opens (or creates) the ledger at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record appends rec to the ledger.
func (s *Store) Record(ctx context.Context, rec StepRecord) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO step_runs (run_id, step_id, status, exit_code, input_digest, script_digest, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.StepID,
		rec.Status,
		rec.ExitCode,
		rec.InputDigest,
		rec.ScriptDigest,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("history: record %s/%s: %w", rec.RunID, rec.StepID, err)
	}
	return nil
}

// LastSuccess returns the newest ok record for stepID.
func (s *Store) LastSuccess(ctx context.Context, stepID string) (StepRecord, bool, error) {
	if s == nil || s.db == nil {
		return StepRecord{}, false, ErrStoreClosed
	}
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, step_id, status, exit_code, input_digest, script_digest, started_at, duration_ms
FROM step_runs
WHERE step_id = ? AND status = ?
ORDER BY id DESC
LIMIT 1`, stepID, StatusOK)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StepRecord{}, false, nil
	}
	if err != nil {
		return StepRecord{}, false, err
	}
	return rec, true, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]StepRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, step_id, status, exit_code, input_digest, script_digest, started_at, duration_ms
FROM step_runs
ORDER BY id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (StepRecord, error) {
	var (
		rec        StepRecord
		startedRaw string
		durationMS int64
	)
	err := row.Scan(
		&rec.RunID,
		&rec.StepID,
		&rec.Status,
		&rec.ExitCode,
		&rec.InputDigest,
		&rec.ScriptDigest,
		&startedRaw,
		&durationMS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StepRecord{}, err
		}
		return StepRecord{}, fmt.Errorf("history: scan: %w", err)
	}
	started, err := time.Parse(time.RFC3339Nano, startedRaw)
	if err != nil {
		return StepRecord{}, fmt.Errorf("history: parse started_at %q: %w", startedRaw, err)
	}
	rec.StartedAt = started
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}
