// Package history persists terminal run outcomes so the panel and the API
// can show recent activity across restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/bakery/internal/bakery"
)

// Store persists run records in SQLite. Use ":memory:" for an in-memory
// database, or a file path for persistent storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates the store and its schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		trigger_source TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one terminal run record.
func (s *Store) Record(ctx context.Context, rec bakery.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, action, trigger_source, outcome, message, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Action, rec.Trigger, rec.Outcome, rec.Message,
		rec.StartedAt.Unix(), rec.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]bakery.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, action, trigger_source, outcome, message, started_at, finished_at FROM runs ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Get returns the run with the given id, or sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, id string) (bakery.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, action, trigger_source, outcome, message, started_at, finished_at FROM runs WHERE id = ?",
		id,
	)

	var rec bakery.RunRecord
	var startedUnix, finishedUnix int64
	err := row.Scan(&rec.ID, &rec.Action, &rec.Trigger, &rec.Outcome, &rec.Message, &startedUnix, &finishedUnix)
	if err != nil {
		return bakery.RunRecord{}, err
	}
	rec.StartedAt = time.Unix(startedUnix, 0).UTC()
	rec.FinishedAt = time.Unix(finishedUnix, 0).UTC()
	return rec, nil
}

func scanRuns(rows *sql.Rows) ([]bakery.RunRecord, error) {
	var records []bakery.RunRecord
	for rows.Next() {
		var rec bakery.RunRecord
		var startedUnix, finishedUnix int64

		err := rows.Scan(&rec.ID, &rec.Action, &rec.Trigger, &rec.Outcome, &rec.Message, &startedUnix, &finishedUnix)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		rec.StartedAt = time.Unix(startedUnix, 0).UTC()
		rec.FinishedAt = time.Unix(finishedUnix, 0).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
