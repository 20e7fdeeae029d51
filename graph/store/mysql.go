package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists run state in MySQL, for deployments where several
// pipeline hosts share one database.
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore connects with the given DSN (for example
// "user:pass@tcp(localhost:3306)/forgeflow?parseTime=true") and migrates
// the schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore[S]) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(128) NOT NULL,
			step INT NOT NULL,
			step_name VARCHAR(128) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_run_step (run_id, step),
			KEY idx_run (run_id)
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create workflow_steps table: %w", err)
	}
	return nil
}

// SaveStep implements Store.
func (s *MySQLStore[S]) SaveStep(ctx context.Context, runID string, step int, stepName string, state S) error {
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
func (s *MySQLStore[S]) LoadLatest(ctx context.Context, runID string) (S, int, error) {
	var zero S
	row := s.db.QueryRowContext(ctx,
		"SELECT step, state FROM workflow_steps WHERE run_id = ? ORDER BY step DESC LIMIT 1", runID)

	var step int
	var payload []byte
	if err := row.Scan(&step, &payload); err != nil {
		if err == sql.ErrNoRows {
			return zero, 0, ErrNotFound
		}
		return zero, 0, fmt.Errorf("query latest step: %w", err)
	}

	var state S
	if err := json.Unmarshal(payload, &state); err != nil {
		return zero, 0, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, step, nil
}

// Steps implements Store.
func (s *MySQLStore[S]) Steps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT step, step_name, state FROM workflow_steps WHERE run_id = ? ORDER BY step ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord[S]
	for rows.Next() {
		var rec StepRecord[S]
		var payload []byte
		if err := rows.Scan(&rec.Step, &rec.StepName, &payload); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.State); err != nil {
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

// Close releases the connection pool.
func (s *MySQLStore[S]) Close() error {
	return s.db.Close()
}
