package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists run state in a single-file SQLite database. Zero
// setup, suitable for the CLI and for local workflows that should survive
// a crash. Uses WAL mode so readers are not blocked by the writer.
type SQLiteStore[S any] struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// migrates the schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore[S]) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			step_name TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, step)
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create workflow_steps table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_workflow_steps_run ON workflow_steps(run_id, step)"); err != nil {
		return fmt.Errorf("create workflow_steps index: %w", err)
	}
	return nil
}

// SaveStep implements Store.
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, runID string, step int, stepName string, state S) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO workflow_steps (run_id, step, step_name, state) VALUES (?, ?, ?, ?)",
		runID, step, stepName, string(payload))
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, runID string) (S, int, error) {
	var zero S
	row := s.db.QueryRowContext(ctx,
		"SELECT step, state FROM workflow_steps WHERE run_id = ? ORDER BY step DESC LIMIT 1", runID)

	var step int
	var payload string
	if err := row.Scan(&step, &payload); err != nil {
		if err == sql.ErrNoRows {
			return zero, 0, ErrNotFound
		}
		return zero, 0, fmt.Errorf("query latest step: %w", err)
	}

	var state S
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return zero, 0, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, step, nil
}

// Steps implements Store.
func (s *SQLiteStore[S]) Steps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT step, step_name, state FROM workflow_steps WHERE run_id = ? ORDER BY step ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord[S]
	for rows.Next() {
		var rec StepRecord[S]
		var payload string
		if err := rows.Scan(&rec.Step, &rec.StepName, &payload); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.State); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// Close releases the database handle.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}
