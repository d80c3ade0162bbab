package storage

import (
	"context"
	"os"
	"time"

	"github.com/steveyegge/kernelfinder/internal/events"
	"github.com/steveyegge/kernelfinder/internal/storage/sqlite"
)

// EventStore defines the interface for registry event history backends
type EventStore interface {
	StoreEvent(ctx context.Context, event *events.RegistryEvent) error
	GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.RegistryEvent, error)
	RecentEvents(ctx context.Context, limit int) ([]*events.RegistryEvent, error)
	CountEvents(ctx context.Context) (map[events.EventType]int, error)

	// Retention
	CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".kf/history.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".kf/history.db",
	}
}

// NewEventStore creates a new SQLite event history.
// KF_HISTORY_DB, when set, overrides the configured path so tests and
// scripts can isolate their history.
func NewEventStore(ctx context.Context, cfg *Config) (EventStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	path := cfg.Path
	if env := os.Getenv("KF_HISTORY_DB"); env != "" {
		path = env
	}
	if path == "" {
		path = DefaultConfig().Path
	}

	return sqlite.New(path)
}
