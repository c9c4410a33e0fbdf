// Package history keeps a record of every boot run in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one row of run history.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	// Succeeded is true when the run completed without entering recovery.
	Succeeded     bool
	TotalDuration time.Duration
	WithinTarget  bool
	FailedPhases  []string
}

// Store is a SQLite-backed run history.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores r.
func (s *Store) Append(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, status, succeeded, total_ns, within_target, failed_phases)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.StartedAt.UnixNano(),
		r.FinishedAt.UnixNano(),
		r.Status,
		boolInt(r.Succeeded),
		int64(r.TotalDuration),
		boolInt(r.WithinTarget),
		strings.Join(r.FailedPhases, ","),
	)
	if err != nil {
		return fmt.Errorf("append run %s: %w", r.RunID, err)
	}
	return nil
}

// SuccessCount returns the number of successful runs recorded.
func (s *Store) SuccessCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE succeeded = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count successful runs: %w", err)
	}
	return n, nil
}

// LastSuccess returns when the most recent successful run finished. The zero
// time is returned when there is none.
func (s *Store) LastSuccess(ctx context.Context) (time.Time, error) {
	var ns sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(finished_at) FROM runs WHERE succeeded = 1`).Scan(&ns); err != nil {
		return time.Time{}, fmt.Errorf("query last success: %w", err)
	}
	if !ns.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, ns.Int64), nil
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, status, succeeded, total_ns, within_target, failed_phases
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r                      RunRecord
			started, finished, tot int64
			succeeded, within      int
			failed                 string
		)
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Status, &succeeded, &tot, &within, &failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		r.Succeeded = succeeded == 1
		r.TotalDuration = time.Duration(tot)
		r.WithinTarget = within == 1
		if failed != "" {
			r.FailedPhases = strings.Split(failed, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
