package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/aliasrobotics/RVD-sub000/internal/storage/github"
	"github.com/aliasrobotics/RVD-sub000/internal/storage/sqlite"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// ErrNotFound is returned by every backend for unknown record ids
var ErrNotFound = types.ErrNotFound

// Store is the document store holding flaw records
type Store interface {
	ListRecords(ctx context.Context, filter types.RecordFilter) ([]*types.Record, error)
	GetRecord(ctx context.Context, id int) (*types.Record, error)
	CreateRecord(ctx context.Context, title, body string, labels []string) (*types.Record, error)
	UpdateRecord(ctx context.Context, id int, title, body string, labels []string) error
	AddComment(ctx context.Context, id int, body string) error

	// Lifecycle
	Close() error
}

// Backends
const (
	BackendGitHub = "github"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend
type Config struct {
	// Backend is "github" or "sqlite"
	Backend string

	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string

	GitHub github.ClientConfig
}

// DefaultConfig returns a config for the local mirror.
// RVD_DB_PATH overrides the path.
func DefaultConfig() *Config {
	path := DefaultDBPath
	if envPath := os.Getenv("RVD_DB_PATH"); envPath != "" {
		path = envPath
	}
	return &Config{
		Backend: BackendSQLite,
		Path:    path,
	}
}

// NewStorage opens the configured backend
func NewStorage(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case BackendGitHub:
		return github.New(cfg.GitHub)
	case BackendSQLite, "":
		path := cfg.Path
		if path == "" {
			discovered, err := DiscoverDatabase()
			if err != nil {
				return nil, err
			}
			path = discovered
		}
		return sqlite.New(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %s or %s)", cfg.Backend, BackendGitHub, BackendSQLite)
	}
}

var (
	_ Store = (*github.Store)(nil)
	_ Store = (*sqlite.SQLiteStorage)(nil)
)
