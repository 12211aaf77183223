package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Networked is the connection-pooled PostgreSQL variant. Queries are written
// with `?` placeholders like the embedded variant; sqlx rebinds them to the
// `$n` style the server expects.
type Networked struct {
	db *sqlx.DB
	q  querier
}

// OpenNetworked connects to the PostgreSQL server at connString with a
// bounded pool and runs pending migrations.
func OpenNetworked(connString string, maxConns int, connTimeout time.Duration) (*Networked, error) {
	connCfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if connTimeout > 0 {
		connCfg.ConnectTimeout = connTimeout
	}

	dbx, err := sqlx.Open("pgx", stdlib.RegisterConnConfig(connCfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if maxConns > 0 {
		dbx.SetMaxOpenConns(maxConns)
		dbx.SetMaxIdleConns(maxConns)
	}
	dbx.SetConnMaxIdleTime(30 * time.Second)

	if err := dbx.Ping(); err != nil {
		dbx.Close()
		return nil, mapPostgresError("ping postgres", err)
	}

	if err := runPostgresMigrations(dbx.DB); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Networked{
		db: dbx,
		q:  querier{ext: dbx, mapErr: mapPostgresError},
	}, nil
}

func (n *Networked) QueryAll(ctx context.Context, dest any, query string, args ...any) error {
	if n == nil {
		return ErrNotInitialized
	}
	return n.q.QueryAll(ctx, dest, query, args...)
}

func (n *Networked) QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	if n == nil {
		return false, ErrNotInitialized
	}
	return n.q.QueryOne(ctx, dest, query, args...)
}

func (n *Networked) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if n == nil {
		return 0, ErrNotInitialized
	}
	return n.q.Exec(ctx, query, args...)
}

// WithTx checks one connection out of the pool for the whole transaction and
// returns it exactly once, on both the commit and rollback paths.
func (n *Networked) WithTx(ctx context.Context, fn func(q Querier) error) error {
	if n == nil {
		return ErrNotInitialized
	}
	return runTx(ctx, n.db, mapPostgresError, fn)
}

func (n *Networked) Close() error {
	if n == nil || n.db == nil {
		return nil
	}
	return n.db.Close()
}
