package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dagflow-io/dagflow/flow"
)

// SQLiteStore is a single-file StateStore for development and single-node
// deployments. Zero setup, durable across restarts, no external service.
//
// WAL mode is enabled for concurrent reads. The connection pool is capped
// at one open connection because SQLite supports a single writer.
//
// TTLs are enforced at read time through expires_at columns; a cleanup of
// expired rows also runs opportunistically on writes.
type SQLiteStore struct {
	db *sql.DB

	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and runs the
// schema migration. Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS executions (
    id         TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS running_executions (
    id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS history (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    workflow_id TEXT NOT NULL,
    data        TEXT NOT NULL,
    expires_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_workflow ON history(workflow_id, seq DESC);

CREATE TABLE IF NOT EXISTS logs (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    day        TEXT NOT NULL,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_day ON logs(day, seq);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) SaveExecution(ctx context.Context, exec *flow.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	expires := s.now().Add(flow.ExecutionTTL).Unix()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO executions (id, data, expires_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		exec.ID, string(data), expires)
	return err
}

func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*flow.Execution, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM executions WHERE id = ? AND expires_at > ?`,
		id, s.now().Unix()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flow.ErrExecutionNotFound
	}
	if err != nil {
		return nil, err
	}
	var exec flow.Execution
	if err := json.Unmarshal([]byte(data), &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

func (s *SQLiteStore) AddToRunning(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO running_executions (id) VALUES (?)`, id)
	return err
}

func (s *SQLiteStore) RemoveFromRunning(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM running_executions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) ListRunning(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM running_executions`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, workflowID string, exec *flow.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	expires := s.now().Add(flow.HistoryTTL).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (workflow_id, data, expires_at) VALUES (?, ?, ?)`,
		workflowID, string(data), expires); err != nil {
		return err
	}
	// Trim to the newest HistoryLimit rows and drop expired ones.
	if _, err := tx.ExecContext(ctx, `
DELETE FROM history WHERE workflow_id = ? AND seq NOT IN (
    SELECT seq FROM history WHERE workflow_id = ? ORDER BY seq DESC LIMIT ?
)`, workflowID, workflowID, flow.HistoryLimit); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history WHERE expires_at <= ?`, s.now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListHistory(ctx context.Context, workflowID string) ([]*flow.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT data FROM history
WHERE workflow_id = ? AND expires_at > ?
ORDER BY seq DESC LIMIT ?`,
		workflowID, s.now().Unix(), flow.HistoryLimit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var execs []*flow.Execution
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var exec flow.Execution
		if err := json.Unmarshal([]byte(data), &exec); err != nil {
			return nil, err
		}
		execs = append(execs, &exec)
	}
	return execs, rows.Err()
}

func (s *SQLiteStore) AppendLog(ctx context.Context, day string, entry flow.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO logs (day, data, expires_at) VALUES (?, ?, ?)`,
		day, string(data), s.now().Add(flow.LogTTL).Unix())
	return err
}

// ListLogs returns the log entries recorded for a day, oldest first.
func (s *SQLiteStore) ListLogs(ctx context.Context, day string) ([]flow.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM logs WHERE day = ? AND expires_at > ? ORDER BY seq`,
		day, s.now().Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []flow.Entry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e flow.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
