package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Error taxonomy shared by both backends. None of these are retried here;
// retry policy belongs to callers.
var (
	// ErrNotInitialized reports use of an adapter before it was opened.
	ErrNotInitialized = errors.New("db: adapter not initialized")

	// ErrConnection reports an unreachable backend, pool exhaustion or a
	// connect timeout. Retryable by the caller.
	ErrConnection = errors.New("db: connection unavailable")

	// ErrConstraint reports a unique-key violation.
	ErrConstraint = errors.New("db: constraint violation")
)

const pgUniqueViolation = "23505"

func mapPostgresError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w: %w", op, ErrConstraint, err)
	}
	if isConnectionError(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func mapSQLiteError(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT {
		return fmt.Errorf("%s: %w: %w", op, ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
