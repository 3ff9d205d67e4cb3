package storage

import (
	"context"

	"github.com/steveyegge/ps4/internal/storage/sqlite"
	"github.com/steveyegge/ps4/internal/types"
)

// ErrNoSnapshot is returned when no stored run matches a lookup.
var ErrNoSnapshot = sqlite.ErrNoSnapshot

// SchemaVersion is the database layout this build reads and writes.
const SchemaVersion = sqlite.SchemaVersion

// Project metadata keys in the config table.
const (
	KeySchemaVersion = "schema_version"
	KeyCreatedAt     = "created_at"
)

// Storage defines the interface for run snapshot backends
type Storage interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, snap *types.Snapshot) error
	GetSnapshot(ctx context.Context, runID string) (*types.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*types.Snapshot, error)
	ListRuns(ctx context.Context, limit int) ([]*types.Run, error)
	DeleteRun(ctx context.Context, runID string) error

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// DefaultPath is where the database lives inside a project.
const DefaultPath = ".ps4/ps4.db"

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".ps4/ps4.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Default to standard path if not specified
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	return sqlite.New(cfg.Path)
}
