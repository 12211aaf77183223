// Package db exposes one uniform query and transaction surface over the two
// storage engines the application can run on: an embedded SQLite file and a
// networked PostgreSQL pool. Callers never branch on the engine; the concrete
// adapter is chosen once at startup from configuration.
package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Querier is the query surface shared by both backends and by in-flight
// transactions. Queries are written with `?` placeholders regardless of the
// engine; the adapter rebinds them when the engine needs a different style.
type Querier interface {
	// QueryAll runs the query and scans every row into dest, which must be a
	// pointer to a slice.
	QueryAll(ctx context.Context, dest any, query string, args ...any) error

	// QueryOne runs the query and scans the first row into dest. It returns
	// false with a nil error when no row matches.
	QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error)

	// Exec runs an INSERT/UPDATE/DELETE and returns the affected row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Adapter is the full backend contract. WithTx runs fn with a Querier whose
// operations are atomic as a unit: on any error returned by fn all effects
// are rolled back and the error is returned; on success effects are
// committed before WithTx returns.
type Adapter interface {
	Querier
	WithTx(ctx context.Context, fn func(q Querier) error) error
	Close() error
}

// errorMapper translates engine-specific errors into the package taxonomy.
type errorMapper func(op string, err error) error

// querier implements Querier over any sqlx execution context, so the same
// code path serves a root connection and an open transaction.
type querier struct {
	ext    sqlx.ExtContext
	mapErr errorMapper
}

func (q querier) QueryAll(ctx context.Context, dest any, query string, args ...any) error {
	if q.ext == nil {
		return ErrNotInitialized
	}
	if err := sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...); err != nil {
		return q.mapErr("query all", err)
	}
	return nil
}

func (q querier) QueryOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	if q.ext == nil {
		return false, ErrNotInitialized
	}
	err := sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, q.mapErr("query one", err)
	}
	return true, nil
}

func (q querier) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if q.ext == nil {
		return 0, ErrNotInitialized
	}
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	if err != nil {
		return 0, q.mapErr("exec", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, q.mapErr("rows affected", err)
	}
	return affected, nil
}

// runTx is the shared transaction body for both adapters. The transaction
// holds exactly one connection for its whole duration and is finished
// exactly once on every path.
func runTx(ctx context.Context, dbx *sqlx.DB, mapErr errorMapper, fn func(q Querier) error) error {
	if dbx == nil {
		return ErrNotInitialized
	}
	tx, err := dbx.BeginTxx(ctx, nil)
	if err != nil {
		return mapErr("begin transaction", err)
	}
	if err := fn(querier{ext: tx, mapErr: mapErr}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr("commit transaction", err)
	}
	return nil
}
