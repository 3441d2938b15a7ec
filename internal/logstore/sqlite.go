package logstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const migrationV1 = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version            INTEGER PRIMARY KEY,
	applied_at_unix_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	id               TEXT PRIMARY KEY,
	shell_id         TEXT NOT NULL,
	command          TEXT NOT NULL,
	work_dir         TEXT NOT NULL,
	exit_code        INTEGER NOT NULL,
	timed_out        INTEGER NOT NULL,
	started_at_ms    INTEGER NOT NULL,
	duration_ms      INTEGER NOT NULL,
	output           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_started ON executions(started_at_ms);
`

// SQLiteStore persists entries in a SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// DefaultDBPath returns the default database path (~/.shellgate/executions.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".shellgate", "executions.db"), nil
}

// NewSQLiteStore opens (creating if needed) the database at dbPath. An empty
// path uses DefaultDBPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// modernc.org/sqlite takes pragmas as _pragma=name(value)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	current := 0
	row := s.db.QueryRowContext(ctx, `SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1`)
	if err := row.Scan(&current); err != nil && !errors.Is(err, sql.ErrNoRows) && !strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, migrationV1); err != nil {
		return fmt.Errorf("migration v1 failed: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_meta (version, applied_at_unix_ms) VALUES (?, ?)`,
		schemaVersion, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record migration v1: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Store(ctx context.Context, output string, meta Metadata) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, shell_id, command, work_dir, exit_code, timed_out, started_at_ms, duration_ms, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, meta.ShellID, meta.Command, meta.WorkDir, meta.ExitCode, meta.TimedOut,
		meta.StartedAt.UnixMilli(), meta.Duration.Milliseconds(), output)
	if err != nil {
		return "", fmt.Errorf("failed to store execution: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	var (
		e         Entry
		timedOut  bool
		startedMS int64
		durMS     int64
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, shell_id, command, work_dir, exit_code, timed_out, started_at_ms, duration_ms, output
		FROM executions WHERE id = ?`, id)
	err := row.Scan(&e.ID, &e.Metadata.ShellID, &e.Metadata.Command, &e.Metadata.WorkDir,
		&e.Metadata.ExitCode, &timedOut, &startedMS, &durMS, &e.Output)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read execution: %w", err)
	}
	e.Metadata.TimedOut = timedOut
	e.Metadata.StartedAt = time.UnixMilli(startedMS)
	e.Metadata.Duration = time.Duration(durMS) * time.Millisecond
	return &e, nil
}

// Close closes the database. It is safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
