package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
)

// Filter narrows ListRegistrations. Zero fields match everything.
type Filter struct {
	ClassID       int64
	StudentID     int64
	PaymentStatus models.PaymentStatus
}

const detailSelect = `
	SELECT r.registration_id, r.membership_id, r.class_id, r.registration_date, r.payment_id,
	       s.first_name || ' ' || s.last_name, s.phone_number,
	       c.course_title, p.first_name || ' ' || p.last_name,
	       cl.class_time, cl.class_days,
	       py.amount, py.payment_method, py.payment_status, py.payment_date
	FROM registrations r
	JOIN students s ON r.membership_id = s.membership_id
	JOIN classes cl ON r.class_id = cl.class_id
	JOIN courses c ON cl.course_id = c.course_id
	JOIN professors p ON cl.professor_id = p.professor_id
	LEFT JOIN payments py ON r.payment_id = py.payment_id
`

// GetRegistration returns a registration with its student, class and payment.
func (s *Service) GetRegistration(ctx context.Context, registrationID int64) (models.RegistrationDetail, error) {
	rows, err := s.db.Querier().Query(ctx, detailSelect+" WHERE r.registration_id = $1", registrationID)
	if err != nil {
		return models.RegistrationDetail{}, s.report(ctx, "get registration", storeError("get registration", err))
	}

	detail, err := pgx.CollectExactlyOneRow(rows, scanDetail)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RegistrationDetail{}, fmt.Errorf("%w: registration %d", ErrNotFound, registrationID)
	}
	if err != nil {
		return models.RegistrationDetail{}, s.report(ctx, "get registration", storeError("get registration", err))
	}
	return detail, nil
}

// ListRegistrations returns matching registrations, newest first.
func (s *Service) ListRegistrations(ctx context.Context, filter Filter) ([]models.RegistrationDetail, error) {
	var where runtime.Where
	if filter.ClassID > 0 {
		where.Add(runtime.Eq("r.class_id", filter.ClassID))
	}
	if filter.StudentID > 0 {
		where.Add(runtime.Eq("r.membership_id", filter.StudentID))
	}
	if filter.PaymentStatus != "" {
		where.Add(runtime.Eq("py.payment_status", string(filter.PaymentStatus)))
	}

	clause, args := where.Build(0)
	query := detailSelect + clause
	query += " ORDER BY r.registration_date DESC, r.registration_id DESC"

	rows, err := s.db.Querier().Query(ctx, query, args...)
	if err != nil {
		return nil, s.report(ctx, "list registrations", storeError("list registrations", err))
	}

	details, err := pgx.CollectRows(rows, scanDetail)
	if err != nil {
		return nil, s.report(ctx, "list registrations", storeError("list registrations", err))
	}
	return details, nil
}

func scanDetail(row pgx.CollectableRow) (models.RegistrationDetail, error) {
	var d models.RegistrationDetail
	var (
		amount      *float64
		method      *string
		status      *string
		paymentDate *time.Time
	)

	err := row.Scan(
		&d.ID, &d.StudentID, &d.ClassID, &d.RegistrationDate, &d.PaymentID,
		&d.StudentName, &d.StudentPhone,
		&d.CourseTitle, &d.ProfessorName,
		&d.ClassTime, &d.ClassDays,
		&amount, &method, &status, &paymentDate,
	)
	if err != nil {
		return d, err
	}

	if d.PaymentID != nil && amount != nil {
		d.Payment = &models.Payment{
			ID:     *d.PaymentID,
			Amount: *amount,
			Method: models.PaymentMethod(deref(method)),
			Status: models.PaymentStatus(deref(status)),
		}
		if paymentDate != nil {
			d.Payment.Date = *paymentDate
		}
	}

	return d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
