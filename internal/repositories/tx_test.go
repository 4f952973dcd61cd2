package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "idx_requests_active"}
	if !IsUniqueViolation(dup) {
		t.Error("23505 should be a unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("insert request: %w", dup)) {
		t.Error("wrapped 23505 should be a unique violation")
	}

	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign-key violations are not unique violations")
	}
	if IsUniqueViolation(errors.New("connection refused")) {
		t.Error("plain errors are not unique violations")
	}
	if IsUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
}
