// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite log of resolution outcomes: which
// document was requested, which step produced a token, and how the
// upstream answered. Tokens are never stored.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/patent-jump/internal/acquire"
)

const defaultLimit = 20

// Entry is one stored resolution.
type Entry struct {
	ID            int64     `json:"id" yaml:"id"`
	DocID         string    `json:"doc_id" yaml:"doc_id"`
	Step          string    `json:"step,omitempty" yaml:"step,omitempty"`
	Result        string    `json:"result" yaml:"result"`
	Mode          string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	FirstStatus   int       `json:"first_status" yaml:"first_status"`
	Attempts      int       `json:"attempts" yaml:"attempts"`
	DurationMS    int64     `json:"duration_ms" yaml:"duration_ms"`
	CorrelationID string    `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	At            time.Time `json:"at" yaml:"at"`
}

// QueryOptions filters Recent.
type QueryOptions struct {
	DocID  string
	Result string
	Limit  int
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

var _ acquire.Recorder = (*Store)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

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
		`CREATE TABLE IF NOT EXISTS resolutions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL,
			step TEXT,
			result TEXT NOT NULL,
			mode TEXT,
			first_status INTEGER,
			attempts INTEGER,
			duration_ms INTEGER,
			correlation_id TEXT,
			error TEXT,
			at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_doc_id ON resolutions(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_at ON resolutions(at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores one outcome.
func (s *Store) Record(ctx context.Context, o acquire.Outcome) error {
	at := o.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (doc_id, step, result, mode, first_status, attempts, duration_ms, correlation_id, error, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.DocID, o.Step, o.Result, o.Mode, o.FirstStatus, o.Attempts,
		o.Duration.Milliseconds(), o.CorrelationID, o.Error,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting resolution: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT id, doc_id, step, result, mode, first_status, attempts, duration_ms, correlation_id, error, at
		FROM resolutions WHERE 1=1`
	var args []any
	if opts.DocID != "" {
		query += ` AND doc_id = ?`
		args = append(args, opts.DocID)
	}
	if opts.Result != "" {
		query += ` AND result = ?`
		args = append(args, opts.Result)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying resolutions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                        Entry
			step, mode, corr, errMsg sql.NullString
			at                       string
		)
		if err := rows.Scan(&e.ID, &e.DocID, &step, &e.Result, &mode, &e.FirstStatus,
			&e.Attempts, &e.DurationMS, &corr, &errMsg, &at); err != nil {
			return nil, fmt.Errorf("scanning resolution: %w", err)
		}
		e.Step = step.String
		e.Mode = mode.String
		e.CorrelationID = corr.String
		e.Error = errMsg.String
		if t, parseErr := time.Parse(time.RFC3339Nano, at); parseErr == nil {
			e.At = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary counts stored resolutions by result.
func (s *Store) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT result, count(*) FROM resolutions GROUP BY result`)
	if err != nil {
		return nil, fmt.Errorf("summarizing resolutions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var result string
		var n int
		if err := rows.Scan(&result, &n); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		counts[result] = n
	}
	return counts, rows.Err()
}
