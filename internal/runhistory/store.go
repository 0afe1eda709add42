package runhistory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"placeforge/internal/run"
)

// Store keeps one row per completed run so operators can review past batches
// without digging through summary files. SQLite-backed; the JSON registry
// remains the source of truth for item progress.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    total       INTEGER NOT NULL,
    successful  INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    skipped     INTEGER NOT NULL,
    summary_path TEXT NOT NULL DEFAULT ''
);
`

// Open initializes or connects to the run history database.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	dbPath := filepath.Join(dir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Entry is one recorded run.
type Entry struct {
	RunID       string
	Kind        string
	FinishedAt  time.Time
	Total       int
	Successful  int
	Failed      int
	Skipped     int
	SummaryPath string
}

// Record inserts (or replaces) the row for a finished run.
func (s *Store) Record(ctx context.Context, summary run.Summary, summaryPath string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO runs (
            run_id, kind, finished_at, total, successful, failed, skipped, summary_path
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.Kind,
		summary.Timestamp,
		summary.Total,
		summary.Successful,
		summary.Failed,
		summary.Skipped,
		summaryPath,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", summary.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT run_id, kind, finished_at, total, successful, failed, skipped, summary_path
        FROM runs ORDER BY finished_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var finished string
		if err := rows.Scan(
			&entry.RunID,
			&entry.Kind,
			&finished,
			&entry.Total,
			&entry.Successful,
			&entry.Failed,
			&entry.Skipped,
			&entry.SummaryPath,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339, finished); parseErr == nil {
			entry.FinishedAt = parsed
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return entries, nil
}
