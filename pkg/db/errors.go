package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the services react to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided the constraint must match as well.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	if pgErr, ok := asPgError(err); ok {
		return pgErr.Code == pgUniqueViolation &&
			(constraintName == "" || pgErr.ConstraintName == constraintName)
	}

	// SQLite reports constraints as "UNIQUE constraint failed: table.column".
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsRetryableTx reports whether a transaction failed only because it lost a
// race with a concurrent one and may succeed if re-run.
func IsRetryableTx(err error) bool {
	pgErr, ok := asPgError(err)
	if !ok {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return nil, false
	}
	return pgErr, true
}
