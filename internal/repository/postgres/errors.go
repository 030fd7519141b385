package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// sqlState returns the SQLSTATE of a Postgres error anywhere in err's chain, or ""
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return pgErr.Code
}

// IsUniqueViolation reports a unique index conflict (sibling slug taken)
func IsUniqueViolation(err error) bool { return sqlState(err) == codeUniqueViolation }

// IsForeignKeyViolation reports a reference to a missing row
func IsForeignKeyViolation(err error) bool { return sqlState(err) == codeForeignKeyViolation }

// IsCheckViolation reports a failed CHECK constraint (depth range, root shape)
func IsCheckViolation(err error) bool { return sqlState(err) == codeCheckViolation }

// IsNoRows reports an empty single-row result
func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsConcurrencyAbort reports a transaction Postgres aborted to keep serializable order
func IsConcurrencyAbort(err error) bool {
	switch sqlState(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}
