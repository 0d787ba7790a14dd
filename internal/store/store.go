// Package store persists user presets, focus sessions and small settings in an
// embedded SQLite database.
//
// Migrations are kept in the [migrations] slice as ordered strings. Each is
// applied exactly once and tracked in schema_migrations. Append new entries,
// never edit or reorder existing ones.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	// ErrPresetNotFound is returned when no preset has the requested id.
	ErrPresetNotFound = errors.New("preset not found")
	// ErrDefaultPreset is returned when a built-in preset would be modified.
	ErrDefaultPreset = errors.New("built-in presets are read-only")
)

// migrations holds the ordered DDL. Index i corresponds to version i+1.
var migrations = []string{
	// v1 settings key/value store
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v2 user presets
	`CREATE TABLE IF NOT EXISTS presets (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		payload            TEXT NOT NULL,
		created_at_unix_ms INTEGER NOT NULL
	)`,
	// v3 focus sessions
	`CREATE TABLE IF NOT EXISTS sessions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at   INTEGER NOT NULL,
		duration_s INTEGER NOT NULL,
		completed  INTEGER NOT NULL DEFAULT 0
	)`,
	// v4 indexes
	`CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at)`,
	`CREATE INDEX IF NOT EXISTS idx_presets_name ON presets(name)`,
	// v6-v10 presets keyed by an insertion sequence; list order no longer
	// depends on millisecond timestamps.
	`CREATE TABLE presets_seq (
		seq                INTEGER PRIMARY KEY AUTOINCREMENT,
		id                 TEXT NOT NULL UNIQUE,
		name               TEXT NOT NULL,
		payload            TEXT NOT NULL,
		created_at_unix_ms INTEGER NOT NULL
	)`,
	`INSERT INTO presets_seq(id, name, payload, created_at_unix_ms)
		SELECT id, name, payload, created_at_unix_ms FROM presets
		ORDER BY created_at_unix_ms ASC, rowid ASC`,
	`DROP TABLE presets`,
	`ALTER TABLE presets_seq RENAME TO presets`,
	`CREATE INDEX IF NOT EXISTS idx_presets_name ON presets(name)`,
}

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies pending
// migrations. Use ":memory:" for an ephemeral database.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty database path")
	}
	memory := path == ":memory:"
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn(path, memory))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if memory {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
			slog.Warn("[store] busy_timeout", "err", err)
		}
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("[store] opened", "path", path)
	return s, nil
}

// dsn puts the connection pragmas in the name so every pooled connection
// gets them. Transactions take the write lock on BEGIN.
func dsn(path string, memory bool) string {
	if memory {
		return path
	}
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Set("_txlock", "immediate")
	return "file:" + uriPath.Replace(path) + "?" + params.Encode()
}

var uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		slog.Debug("[store] applied migration", "version", v)
	}
	return nil
}

// GetSetting returns the value stored under key. The second return value is
// false when the key does not exist.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetSetting upserts key → value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Backup writes a consistent copy of the database to destPath.
func (s *Store) Backup(destPath string) error {
	_, err := s.db.Exec(`VACUUM INTO ?`, destPath)
	return err
}
