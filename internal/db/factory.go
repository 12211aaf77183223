package db

import (
	"fmt"
	"log/slog"
	"time"
)

// BackendType selects the storage engine.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Config holds everything needed to open either backend. Selection happens
// exactly once, at process start.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLitePath string

	// Postgres specific
	PostgresURL         string
	PostgresMaxConns    int
	PostgresConnTimeout time.Duration
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres connection string is required for postgres backend")
		}
		if c.PostgresMaxConns < 1 {
			return fmt.Errorf("postgres pool size must be at least 1, got %d", c.PostgresMaxConns)
		}
	}

	return nil
}

// Open creates the adapter described by config. The returned Adapter is the
// only handle callers hold; there is no ambient package-level instance.
func Open(config Config, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		adapter, err := OpenEmbedded(config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized embedded SQLite backend", "db_path", config.SQLitePath)
		return adapter, nil

	case PostgresBackend:
		adapter, err := OpenNetworked(config.PostgresURL, config.PostgresMaxConns, config.PostgresConnTimeout)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres backend: %w", err)
		}
		logger.Info("Initialized networked Postgres backend",
			"max_conns", config.PostgresMaxConns,
			"conn_timeout", config.PostgresConnTimeout)
		return adapter, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
