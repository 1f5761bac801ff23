package database

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// UniqueViolation reports whether err is a unique constraint violation, and on which constraint.
// It understands both lib/pq and pgx errors.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return pqErr.Constraint, true
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
