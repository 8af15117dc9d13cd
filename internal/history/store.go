// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists a log of conversion runs and their failures in
// a SQLite database so earlier runs can be listed and inspected.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docbatch/pkg/types"
)

const (
	appDir = "docbatch"
	dbFile = "history.db"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one recorded conversion run.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Source     string    `json:"source" yaml:"source"`
	Output     string    `json:"output" yaml:"output"`
	Format     string    `json:"format,omitempty" yaml:"format,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Total      int       `json:"total" yaml:"total"`
	Succeeded  int       `json:"succeeded" yaml:"succeeded"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
	ReportPath string    `json:"report_path,omitempty" yaml:"report_path,omitempty"`
}

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns <user config dir>/docbatch/history.db.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, appDir, dbFile), nil
}

// Open opens or creates the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Serialise writers; web jobs may finish at the same time.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			output TEXT NOT NULL,
			format TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			total INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			report_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			reason TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run_id ON failures(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores summary and its failures, returning the new run ID.
func (s *Store) Record(ctx context.Context, summary types.RunSummary) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, output, format, started_at, finished_at,
			total, succeeded, skipped, failed, report_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, summary.Source, summary.Output, summary.Format,
		formatTime(summary.StartedAt), formatTime(summary.FinishedAt),
		summary.Total, summary.Succeeded, summary.Skipped, summary.Failed,
		summary.ReportPath,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if len(summary.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO failures (run_id, path, reason) VALUES (?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range summary.FailureList() {
			if _, err := stmt.ExecContext(ctx, id, f.Path, f.Reason); err != nil {
				return "", fmt.Errorf("inserting failure %s: %w", f.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, source, output, format, started_at, finished_at,
		total, succeeded, skipped, failed, report_path
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns one run by ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, output, format, started_at, finished_at,
			total, succeeded, skipped, failed, report_path
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Failures returns the failures recorded for a run, ordered by path.
func (s *Store) Failures(ctx context.Context, runID string) ([]types.Failure, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, reason FROM failures WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var out []types.Failure
	for rows.Next() {
		var f types.Failure
		if err := rows.Scan(&f.Path, &f.Reason); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		format, report    sql.NullString
		started, finished string
	)
	err := sc.Scan(&r.ID, &r.Source, &r.Output, &format, &started, &finished,
		&r.Total, &r.Succeeded, &r.Skipped, &r.Failed, &report)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	r.Format = format.String
	r.ReportPath = report.String
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
