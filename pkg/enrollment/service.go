// Package enrollment keeps registrations and their payments consistent.
//
// Every operation runs in its own transaction. Capacity and duplicate checks
// lock the target class row first, so creates against one class are
// serialized and a class never ends up over capacity at creation time, even
// under concurrent callers.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/langschool/backoffice/pkg/runtime"
)

// Service implements the registration lifecycle.
type Service struct {
	db     *runtime.DB
	logger *slog.Logger
}

// NewService creates a Service over db that logs to slog.Default.
func NewService(db *runtime.DB) *Service {
	return &Service{db: db, logger: slog.Default()}
}

// WithLogger sets the logger used for store failures.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// report logs err when the store failed and returns it unchanged.
func (s *Service) report(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		s.logger.LogAttrs(ctx, slog.LevelError, "store failure",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// Availability describes the seats of a class. Available may be negative
// when capacity was lowered below the committed count.
type Availability struct {
	ClassID    int64 `json:"class_id"`
	Capacity   int64 `json:"capacity"`
	Registered int64 `json:"registered"`
	Available  int64 `json:"available"`
}

// CreateRegistration registers a student in a class and, when intent carries
// a positive amount, inserts and links its payment. It returns the new
// registration id.
func (s *Service) CreateRegistration(ctx context.Context, studentID, classID int64, intent *PaymentIntent) (int64, error) {
	if intent != nil {
		if err := checkAmount(intent.Amount); err != nil {
			return 0, err
		}
		if err := validateEnums(intent.Method, intent.Status); err != nil {
			return 0, err
		}
	}

	var registrationID int64
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		capacity, err := lockClass(ctx, tx, classID)
		if err != nil {
			return err
		}
		if err := requireStudent(ctx, tx, studentID); err != nil {
			return err
		}

		duplicate, err := hasRegistration(ctx, tx, studentID, classID, 0)
		if err != nil {
			return err
		}
		if duplicate {
			return ErrDuplicateEnrollment
		}

		registered, err := countRegistrations(ctx, tx, classID)
		if err != nil {
			return err
		}
		if registered >= capacity {
			return fmt.Errorf("%w: class %d has %d of %d seats taken", ErrCapacityExceeded, classID, registered, capacity)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO registrations (membership_id, class_id, registration_date)
			VALUES ($1, $2, CURRENT_DATE)
			RETURNING registration_id
		`, studentID, classID).Scan(&registrationID)
		if err != nil {
			return storeError("insert registration", err)
		}

		if intent == nil || intent.Amount <= 0 {
			return nil
		}
		_, err = insertAndLinkPayment(ctx, tx, registrationID, intent.Amount, intent.Method, intent.Status)
		return err
	})
	if err != nil {
		return 0, s.report(ctx, "create registration", err)
	}

	return registrationID, nil
}

// UpdateRegistration moves a registration to another student or class and
// applies the payment edit. Capacity is checked only when the class changes.
func (s *Service) UpdateRegistration(ctx context.Context, registrationID, studentID, classID int64, payment PaymentUpdate) error {
	if err := checkAmount(payment.Amount); err != nil {
		return err
	}
	if err := validateEnums(payment.Method, payment.Status); err != nil {
		return err
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var currentClassID int64
		var paymentID *int64
		err := tx.QueryRow(ctx, `
			SELECT class_id, payment_id FROM registrations
			WHERE registration_id = $1
			FOR UPDATE
		`, registrationID).Scan(&currentClassID, &paymentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: registration %d", ErrNotFound, registrationID)
		}
		if err != nil {
			return storeError("lock registration", err)
		}

		classChanged := classID != currentClassID
		var capacity int64
		if classChanged {
			if capacity, err = lockClass(ctx, tx, classID); err != nil {
				return err
			}
		}
		if err := requireStudent(ctx, tx, studentID); err != nil {
			return err
		}

		duplicate, err := hasRegistration(ctx, tx, studentID, classID, registrationID)
		if err != nil {
			return err
		}
		if duplicate {
			return ErrDuplicateEnrollment
		}

		if classChanged {
			registered, err := countRegistrations(ctx, tx, classID)
			if err != nil {
				return err
			}
			if registered >= capacity {
				return fmt.Errorf("%w: class %d has %d of %d seats taken", ErrCapacityExceeded, classID, registered, capacity)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE registrations SET membership_id = $1, class_id = $2
			WHERE registration_id = $3
		`, studentID, classID, registrationID)
		if err != nil {
			return storeError("update registration", err)
		}

		return applyPayment(ctx, tx, registrationID, paymentID, payment)
	})
	return s.report(ctx, "update registration", err)
}

// DeleteRegistration removes a registration and its payment. Deleting a
// registration that does not exist succeeds.
func (s *Service) DeleteRegistration(ctx context.Context, registrationID int64) error {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var paymentID *int64
		err := tx.QueryRow(ctx, `
			SELECT payment_id FROM registrations
			WHERE registration_id = $1
			FOR UPDATE
		`, registrationID).Scan(&paymentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return storeError("lock registration", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM registrations WHERE registration_id = $1", registrationID); err != nil {
			return storeError("delete registration", err)
		}

		if paymentID == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, "DELETE FROM payments WHERE payment_id = $1", *paymentID); err != nil {
			return storeError("delete payment", err)
		}
		return nil
	})
	return s.report(ctx, "delete registration", err)
}

// GetClassAvailability reports capacity and registered count of a class.
func (s *Service) GetClassAvailability(ctx context.Context, classID int64) (Availability, error) {
	a := Availability{ClassID: classID}
	err := s.db.Querier().QueryRow(ctx, `
		SELECT capacity,
		       (SELECT COUNT(*) FROM registrations WHERE class_id = $1)
		FROM classes WHERE class_id = $1
	`, classID).Scan(&a.Capacity, &a.Registered)
	if errors.Is(err, pgx.ErrNoRows) {
		return Availability{}, fmt.Errorf("%w: class %d", ErrNotFound, classID)
	}
	if err != nil {
		return Availability{}, s.report(ctx, "class availability", storeError("class availability", err))
	}

	a.Available = a.Capacity - a.Registered
	return a, nil
}

// AttachPayment adds a payment to a registration that has none.
func (s *Service) AttachPayment(ctx context.Context, registrationID int64, intent PaymentIntent) (int64, error) {
	if intent.Amount <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, intent.Amount)
	}
	if err := checkAmount(intent.Amount); err != nil {
		return 0, err
	}
	if err := validateEnums(intent.Method, intent.Status); err != nil {
		return 0, err
	}

	var paymentID int64
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var linked *int64
		err := tx.QueryRow(ctx, `
			SELECT payment_id FROM registrations
			WHERE registration_id = $1
			FOR UPDATE
		`, registrationID).Scan(&linked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: registration %d", ErrNotFound, registrationID)
		}
		if err != nil {
			return storeError("lock registration", err)
		}
		if linked != nil {
			return ErrPaymentExists
		}

		paymentID, err = insertAndLinkPayment(ctx, tx, registrationID, intent.Amount, intent.Method, intent.Status)
		return err
	})
	if err != nil {
		return 0, s.report(ctx, "attach payment", err)
	}

	return paymentID, nil
}

// lockClass takes the class row lock and returns the class capacity.
func lockClass(ctx context.Context, tx pgx.Tx, classID int64) (int64, error) {
	var capacity int64
	err := tx.QueryRow(ctx, "SELECT capacity FROM classes WHERE class_id = $1 FOR UPDATE", classID).Scan(&capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: class %d", ErrNotFound, classID)
	}
	if err != nil {
		return 0, storeError("lock class", err)
	}
	return capacity, nil
}

func requireStudent(ctx context.Context, q runtime.Querier, studentID int64) error {
	var exists bool
	err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM students WHERE membership_id = $1)", studentID).Scan(&exists)
	if err != nil {
		return storeError("find student", err)
	}
	if !exists {
		return fmt.Errorf("%w: student %d", ErrNotFound, studentID)
	}
	return nil
}

// hasRegistration reports whether (studentID, classID) is taken by a
// registration other than excludeID. An excludeID of 0 excludes nothing.
func hasRegistration(ctx context.Context, q runtime.Querier, studentID, classID, excludeID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE membership_id = $1 AND class_id = $2 AND registration_id <> $3
		)
	`, studentID, classID, excludeID).Scan(&exists)
	if err != nil {
		return false, storeError("check duplicate registration", err)
	}
	return exists, nil
}

func countRegistrations(ctx context.Context, q runtime.Querier, classID int64) (int64, error) {
	var count int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM registrations WHERE class_id = $1", classID).Scan(&count); err != nil {
		return 0, storeError("count registrations", err)
	}
	return count, nil
}
