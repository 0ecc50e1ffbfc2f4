// Package store persists the session lifecycle journal and past attempt
// results in SQLite. It is write-mostly: nothing here is read back to resume
// a session.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const (
	tableSessionEvents  = "session_events"
	tableAttemptResults = "attempt_results"
)

// Store holds the database handle and provides access to repositories.
type Store struct {
	db  *sql.DB
	drv *entsql.Driver
	seq *sequenceCounter
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	if err := migrate(context.Background(), drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		drv.Close()
		return nil, err
	}

	return &Store{db: db, drv: drv, seq: seq}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{drv: s.drv, seq: s.seq}
}

// AttemptRepo returns an AttemptRepo backed by this store.
func (s *Store) AttemptRepo() AttemptRepo {
	return &attemptRepo{drv: s.drv}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + tableSessionEvents + ` (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL UNIQUE,
		event_id      TEXT NOT NULL,
		session_id    TEXT NOT NULL,
		assessment_id TEXT NOT NULL,
		action        TEXT NOT NULL,
		payload       TEXT NOT NULL,
		timestamp     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS session_events_session_id ON ` + tableSessionEvents + ` (session_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS ` + tableAttemptResults + ` (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id     TEXT NOT NULL UNIQUE,
		assessment_id  TEXT NOT NULL,
		title          TEXT NOT NULL DEFAULT '',
		score          INTEGER NOT NULL,
		passed         BOOLEAN NOT NULL,
		correct        INTEGER NOT NULL,
		total          INTEGER NOT NULL,
		time_taken     INTEGER NOT NULL,
		auto_submitted BOOLEAN NOT NULL,
		completed_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS attempt_results_completed_at ON ` + tableAttemptResults + ` (completed_at)`,
}

// migrate creates missing tables and indexes. It is safe to run on every open.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	for _, stmt := range schema {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. HANGEUL_DB environment variable
// 2. $XDG_DATA_HOME/hangeul/hangeul.db
// 3. ~/.local/share/hangeul/hangeul.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("HANGEUL_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "hangeul", "hangeul.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
