package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound reports that a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports that a write lost to a concurrent booking:
	// either the overlap re-check found a blocking appointment or the
	// database exclusion constraint rejected the insert.
	ErrConflict = errors.New("booking conflict")
)

// exclusionViolation is the SQLSTATE raised when an insert collides
// with the appointments no-overlap EXCLUDE constraint.
const exclusionViolation = "23P01"

func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
