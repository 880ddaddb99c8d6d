package enrollment

import (
	"errors"
	"fmt"

	"github.com/langschool/backoffice/pkg/runtime"
)

var (
	// ErrDuplicateEnrollment is returned when the student already holds a
	// registration in the class.
	ErrDuplicateEnrollment = errors.New("student is already registered in this class")

	// ErrCapacityExceeded is returned when the class has no free seat.
	ErrCapacityExceeded = errors.New("class capacity exceeded")

	// ErrPaymentExists is returned by AttachPayment when a payment is already linked.
	ErrPaymentExists = errors.New("registration already has a payment")

	// ErrInvalidAmount is returned when a payment amount is not positive, is
	// not a finite number or exceeds MaxAmount.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrNotFound is returned when the registration, class or student does not exist.
	ErrNotFound = runtime.ErrNotFound

	// ErrStoreUnavailable is returned when the store failed. The operation
	// was rolled back and may be retried.
	ErrStoreUnavailable = runtime.ErrStoreUnavailable
)

// uniqueRegistrationIndex backs the (student, class) rule in the schema.
const uniqueRegistrationIndex = "registrations_student_class_key"

// storeError converts a driver error raised during op into the package's
// error set. Errors already in that set pass through.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var validation *runtime.ValidationError
	switch {
	case errors.Is(err, ErrDuplicateEnrollment),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrPaymentExists),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrNotFound),
		errors.As(err, &validation):
		return err
	}

	classified := runtime.Classify(op, err)
	switch {
	case errors.Is(classified, runtime.ErrDuplicateKey):
		if runtime.ConstraintName(classified) == uniqueRegistrationIndex {
			return ErrDuplicateEnrollment
		}
		return fmt.Errorf("%s: %w", op, classified)
	case errors.Is(classified, runtime.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %s references a missing row", ErrNotFound, op)
	case errors.Is(classified, runtime.ErrCheckViolation):
		return &runtime.ValidationError{Field: runtime.ConstraintName(classified), Message: "rejected by check constraint"}
	case errors.Is(classified, runtime.ErrInvalidData):
		return &runtime.ValidationError{Field: dataField(classified), Message: "value cannot be stored"}
	}

	return classified
}

func dataField(err error) string {
	if column := runtime.ConstraintName(err); column != "" {
		return column
	}
	return "value"
}
