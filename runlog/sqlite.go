package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weftlabs/weft/resolve"
)

// SqliteStore implements Store on a SQLite database file.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a run log database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory store (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			root_path TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			status TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS node_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			parent_path TEXT NOT NULL,
			depth INTEGER NOT NULL,
			status TEXT NOT NULL,
			phase TEXT NOT NULL,
			is_pending_chat INTEGER NOT NULL,
			is_chat_file INTEGER,
			error TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
			UNIQUE(run_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_node_events_run
		ON node_events(run_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SqliteStore) BeginRun(ctx context.Context, run Run) error {
	status := run.Status
	if status == "" {
		status = RunRunning
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, root_path, started_at, finished_at, status)
		VALUES (?, ?, ?, NULL, ?)`,
		run.ID, run.RootPath, run.StartedAt.UnixNano(), string(status))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *SqliteStore) FinishRun(ctx context.Context, runID string, status RunStatus, finishedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		string(status), finishedAt.UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (s *SqliteStore) AppendEvent(ctx context.Context, event resolve.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_events
			(run_id, seq, at, file_path, parent_path, depth, status, phase, is_pending_chat, is_chat_file, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Seq, event.At.UnixNano(), event.FilePath, event.ParentPath,
		event.Depth, string(event.Status), string(event.Phase),
		event.IsPendingChat, event.IsChatFile, event.Error)
	if err != nil {
		return fmt.Errorf("failed to insert node event: %w", err)
	}
	return nil
}

func (s *SqliteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, root_path, started_at, finished_at, status
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.RootPath, &startedAt, &finishedAt, &run.Status); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = time.Unix(0, startedAt)
		if finishedAt.Valid {
			run.FinishedAt = time.Unix(0, finishedAt.Int64)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SqliteStore) Events(ctx context.Context, runID string) ([]resolve.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, at, file_path, parent_path, depth, status, phase, is_pending_chat, is_chat_file, error
		FROM node_events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node events: %w", err)
	}
	defer rows.Close()

	var events []resolve.Event
	for rows.Next() {
		var (
			event      resolve.Event
			at         int64
			isChatFile sql.NullBool
		)
		if err := rows.Scan(&event.RunID, &event.Seq, &at, &event.FilePath, &event.ParentPath,
			&event.Depth, &event.Status, &event.Phase, &event.IsPendingChat, &isChatFile,
			&event.Error); err != nil {
			return nil, fmt.Errorf("failed to scan node event: %w", err)
		}
		event.At = time.Unix(0, at)
		if isChatFile.Valid {
			known := isChatFile.Bool
			event.IsChatFile = &known
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)
