package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cofre/internal/db"
)

type Config struct {
	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// Postgres
	PostgresURL         string
	PostgresMaxConns    int
	PostgresConnTimeout time.Duration

	// Rollover scheduler
	RolloverInterval time.Duration

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	cfg := &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cofre.db"),

		PostgresURL:         getEnv("POSTGRES_URL", ""),
		PostgresMaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
		PostgresConnTimeout: getEnvDuration("POSTGRES_CONN_TIMEOUT", 2*time.Second),

		RolloverInterval: getEnvDuration("ROLLOVER_INTERVAL", 30*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cofre"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_rollovers"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	backendType := db.BackendType(c.DataBackend)
	if !backendType.IsValid() {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite postgres]", c.DataBackend))
	}

	// Validate SQLite configuration if backend is sqlite
	if backendType == db.SQLiteBackend {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate Postgres configuration if backend is postgres
	if backendType == db.PostgresBackend {
		if c.PostgresURL == "" {
			errors = append(errors, "Postgres connection string is required when using postgres backend")
		} else if parsedURL, err := url.Parse(c.PostgresURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL '%s': %v", c.PostgresURL, err))
		} else if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL scheme '%s': must be 'postgres' or 'postgresql'", parsedURL.Scheme))
		}

		if c.PostgresMaxConns < 1 {
			errors = append(errors, fmt.Sprintf("invalid postgres pool size %d: must be at least 1", c.PostgresMaxConns))
		} else if c.PostgresMaxConns > 100 {
			errors = append(errors, fmt.Sprintf("invalid postgres pool size %d: must be at most 100", c.PostgresMaxConns))
		}

		if c.PostgresConnTimeout < time.Second {
			errors = append(errors, fmt.Sprintf("invalid postgres connection timeout %v: must be at least 1 second", c.PostgresConnTimeout))
		}
	}

	// Validate rollover interval
	if c.RolloverInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at least 1 minute", c.RolloverInterval))
	} else if c.RolloverInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at most 24 hours", c.RolloverInterval))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// BackendConfig converts the application config into the storage backend
// config consumed by db.Open.
func (c *Config) BackendConfig() db.Config {
	return db.Config{
		Type:                db.BackendType(c.DataBackend),
		SQLitePath:          c.SQLiteDBPath,
		PostgresURL:         c.PostgresURL,
		PostgresMaxConns:    c.PostgresMaxConns,
		PostgresConnTimeout: c.PostgresConnTimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
