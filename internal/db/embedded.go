package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Embedded is the single-process, file-backed SQLite variant. The database
// runs in WAL mode and all access goes through one connection, so writes are
// serialized by construction.
type Embedded struct {
	db *sqlx.DB
	q  querier
}

// OpenEmbedded opens (creating if needed) the SQLite database at path and
// runs pending migrations.
func OpenEmbedded(path string) (*Embedded, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	dbx, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer: one shared connection keeps concurrent transactions
	// from tripping over SQLITE_BUSY.
	dbx.SetMaxOpenConns(1)

	if err := dbx.Ping(); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runSQLiteMigrations(path); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Embedded{
		db: dbx,
		q:  querier{ext: dbx, mapErr: mapSQLiteError},
	}, nil
}

func (e *Embedded) QueryAll(ctx context.Context, dest any, query string, args ...any) error {
	if e == nil {
		return ErrNotInitialized
	}
	return e.q.QueryAll(ctx, dest, query, args...)
}

func (e *Embedded) QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	if e == nil {
		return false, ErrNotInitialized
	}
	return e.q.QueryOne(ctx, dest, query, args...)
}

func (e *Embedded) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if e == nil {
		return 0, ErrNotInitialized
	}
	return e.q.Exec(ctx, query, args...)
}

func (e *Embedded) WithTx(ctx context.Context, fn func(q Querier) error) error {
	if e == nil {
		return ErrNotInitialized
	}
	return runTx(ctx, e.db, mapSQLiteError, fn)
}

func (e *Embedded) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}
