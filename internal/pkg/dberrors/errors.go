package dberrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn" // Import pgconn for PgError
)

// PostgreSQL SQLSTATE codes the data layer cares about
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// IsDuplicateConstraintError checks if the error is a PostgreSQL unique violation error
// for a specific constraint.
func IsDuplicateConstraintError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation && pgErr.ConstraintName == constraintName
}

// IsUniqueViolation reports any unique_violation regardless of constraint.
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsForeignKeyViolation reports a foreign_key_violation, e.g. a booking
// inserted for a student deleted by a concurrent transaction.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, CodeForeignKeyViolation)
}

// IsConcurrencyFailure reports errors that mean a concurrent transaction won:
// serialization failures and detected deadlocks.
func IsConcurrencyFailure(err error) bool {
	return hasCode(err, CodeSerializationFailure) || hasCode(err, CodeDeadlockDetected)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
