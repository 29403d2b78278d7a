package storage

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsConflict(t *testing.T) {
	if !IsConflict(ErrConflict) {
		t.Fatal("ErrConflict should classify as conflict")
	}
	if !IsConflict(fmt.Errorf("book: %w", ErrConflict)) {
		t.Fatal("wrapped ErrConflict should classify as conflict")
	}
	// The exclusion constraint backstop surfaces as SQLSTATE 23P01.
	exclusion := &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}
	if !IsConflict(exclusion) {
		t.Fatal("exclusion violation should classify as conflict")
	}
	if !IsConflict(fmt.Errorf("book: %w", exclusion)) {
		t.Fatal("wrapped exclusion violation should classify as conflict")
	}

	if IsConflict(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not a slot conflict")
	}
	if IsConflict(ErrNotFound) {
		t.Fatal("not-found is not a conflict")
	}
	if IsConflict(nil) {
		t.Fatal("nil is not a conflict")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrNotFound) {
		t.Fatal("ErrNotFound should classify as not-found")
	}
	if !IsNotFound(fmt.Errorf("load: %w", ErrNotFound)) {
		t.Fatal("wrapped ErrNotFound should classify as not-found")
	}
	if !IsNotFound(pgx.ErrNoRows) {
		t.Fatal("pgx.ErrNoRows should classify as not-found")
	}
	if IsNotFound(ErrConflict) {
		t.Fatal("conflict is not not-found")
	}
	if IsNotFound(nil) {
		t.Fatal("nil is not not-found")
	}
}
