// Package runtime provides the store runtime shared by the back office
// services: the connection pool, per-call transactions and the mapping of
// driver errors onto a small set of store outcomes.
package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrCheckViolation is returned when a check constraint rejects a row.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrInvalidData is returned when a value cannot be stored in its column,
	// such as a numeric overflow or an over-long string. Retrying cannot help.
	ErrInvalidData = errors.New("invalid data")

	// ErrStoreUnavailable is returned when the connection or transaction failed.
	// Callers may retry the whole operation.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// PostgreSQL SQLSTATE codes the runtime distinguishes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"

	// SQLSTATE class 22 covers data exceptions.
	classDataException = "22"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// StoreError reports a connection, transaction or statement failure.
// It matches ErrStoreUnavailable with errors.Is.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

// Unwrap returns both the store sentinel and the driver error.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// ConstraintError reports a row rejected by a table constraint.
// Kind is one of ErrDuplicateKey, ErrForeignKeyViolation, ErrCheckViolation
// or ErrInvalidData. For ErrInvalidData, Constraint holds the column name
// when the server reports one.
type ConstraintError struct {
	Kind       error
	Constraint string
	Err        error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v on %s", e.Kind, e.Constraint)
}

// Unwrap returns both the constraint kind and the driver error.
func (e *ConstraintError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Classify maps a driver error onto the runtime's error set.
// op names the statement for diagnostics.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return &ConstraintError{Kind: ErrDuplicateKey, Constraint: pgErr.ConstraintName, Err: err}
		case codeForeignKeyViolation:
			return &ConstraintError{Kind: ErrForeignKeyViolation, Constraint: pgErr.ConstraintName, Err: err}
		case codeCheckViolation:
			return &ConstraintError{Kind: ErrCheckViolation, Constraint: pgErr.ConstraintName, Err: err}
		}
		if strings.HasPrefix(pgErr.Code, classDataException) {
			return &ConstraintError{Kind: ErrInvalidData, Constraint: pgErr.ColumnName, Err: err}
		}
	}

	return &StoreError{Op: op, Err: err}
}

// ConstraintName returns the violated constraint carried by err, if any.
func ConstraintName(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}
