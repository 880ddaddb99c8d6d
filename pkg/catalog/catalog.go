// Package catalog creates, edits and reads professors, students, courses and
// class sections. Deletes go through the guard package.
package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/langschool/backoffice/pkg/runtime"
)

const dateLayout = time.DateOnly

var (
	// ErrConflict is returned when a unique contact field is taken by another row.
	ErrConflict = errors.New("conflicts with an existing record")

	// ErrNotFound is returned when the row or a referenced row does not exist.
	ErrNotFound = runtime.ErrNotFound
)

// Catalog writes catalog rows.
type Catalog struct {
	db       *runtime.DB
	validate *validator.Validate
}

// New creates a Catalog over db.
func New(db *runtime.DB) *Catalog {
	return &Catalog{db: db, validate: NewValidator()}
}

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates in and converts the first failure into a *runtime.ValidationError.
func (c *Catalog) check(in any) error {
	err := c.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate input: %w", err)
	}

	fe := fieldErrs[0]
	return &runtime.ValidationError{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return "must be a date formatted as YYYY-MM-DD"
	default:
		return "is invalid"
	}
}

// parseDate reads an optional YYYY-MM-DD value. Validation has already
// checked the format.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, &runtime.ValidationError{Field: field, Message: "must be a date formatted as YYYY-MM-DD"}
	}
	return &t, nil
}

// writeError maps a driver error from a catalog write.
func writeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var validation *runtime.ValidationError
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.As(err, &validation) {
		return err
	}

	classified := runtime.Classify(op, err)
	switch {
	case errors.Is(classified, runtime.ErrDuplicateKey):
		return fmt.Errorf("%w: %s", ErrConflict, runtime.ConstraintName(classified))
	case errors.Is(classified, runtime.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %s", ErrNotFound, runtime.ConstraintName(classified))
	case errors.Is(classified, runtime.ErrCheckViolation):
		return &runtime.ValidationError{Field: runtime.ConstraintName(classified), Message: "rejected by check constraint"}
	case errors.Is(classified, runtime.ErrInvalidData):
		field := runtime.ConstraintName(classified)
		if field == "" {
			field = "value"
		}
		return &runtime.ValidationError{Field: field, Message: "value cannot be stored"}
	}
	return classified
}
