// Package sqlite keeps the diagnostic registry event history in SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage stores registry events in a SQLite database
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the history database at path.
// The special path ":memory:" creates an in-memory database.
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		// The parent of .kf/history.db may not exist yet.
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL lets kf history read while a session is still recording.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// Path returns the database path this storage was opened with.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
