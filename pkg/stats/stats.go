// Package stats provides read-only projections over the back office store.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
)

// DefaultLimit bounds listings when the caller passes a non-positive limit.
const DefaultLimit = 5

// Windows of the live counters.
const (
	RecentRegistrationDays = 7
	RevenueDays            = 30
)

// Dashboard holds the entity counts and completed revenue.
type Dashboard struct {
	Professors    int64   `json:"professors"`
	Students      int64   `json:"students"`
	Courses       int64   `json:"courses"`
	Classes       int64   `json:"classes"`
	Registrations int64   `json:"registrations"`
	Revenue       float64 `json:"payments"`
}

// Live holds the counters refreshed by the dashboard screen.
type Live struct {
	Professors          int64   `json:"professors"`
	Students            int64   `json:"students"`
	Courses             int64   `json:"courses"`
	UpcomingClasses     int64   `json:"upcoming_classes"`
	RecentRegistrations int64   `json:"recent_registrations"`
	Revenue30Days       float64 `json:"revenue_30days"`
}

// PaymentSummary totals payments by status.
type PaymentSummary struct {
	TotalCompleted float64 `json:"total_completed"`
	TotalPending   float64 `json:"total_pending"`
	Count          int64   `json:"payment_count"`
}

// RecentRegistration is one row of the latest registrations listing.
type RecentRegistration struct {
	StudentName      string    `json:"student_name"`
	PhoneNumber      string    `json:"phone_number"`
	RegistrationDate time.Time `json:"registration_date"`
	CourseTitle      string    `json:"course_title"`
	ProfessorName    string    `json:"professor_name"`
}

// UpcomingClass is a class starting today or later.
type UpcomingClass struct {
	ClassID       int64     `json:"class_id"`
	CourseTitle   string    `json:"course_title"`
	ProfessorName string    `json:"professor_name"`
	StartDate     time.Time `json:"start_date"`
	ClassTime     string    `json:"class_time"`
	ClassDays     string    `json:"class_days"`
	Registered    int64     `json:"registered_count"`
	Capacity      int64     `json:"capacity"`
}

// Available returns the free seats, negative when overbooked.
func (c UpcomingClass) Available() int64 {
	return c.Capacity - c.Registered
}

// Reader runs the projections on pooled connections.
type Reader struct {
	db *runtime.DB
}

// NewReader creates a Reader over db.
func NewReader(db *runtime.DB) *Reader {
	return &Reader{db: db}
}

// Dashboard counts every entity and sums completed payments.
func (r *Reader) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := r.db.Querier().QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM professors),
		       (SELECT COUNT(*) FROM students),
		       (SELECT COUNT(*) FROM courses),
		       (SELECT COUNT(*) FROM classes),
		       (SELECT COUNT(*) FROM registrations),
		       (SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_status = $1)
	`, string(models.StatusCompleted)).Scan(
		&d.Professors, &d.Students, &d.Courses, &d.Classes, &d.Registrations, &d.Revenue,
	)
	if err != nil {
		return Dashboard{}, runtime.Classify("dashboard stats", err)
	}
	return d, nil
}

// Live returns the counters over trailing windows. Revenue covers every
// payment dated inside the window regardless of status.
func (r *Reader) Live(ctx context.Context) (Live, error) {
	var l Live
	err := r.db.Querier().QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM professors),
		       (SELECT COUNT(*) FROM students),
		       (SELECT COUNT(*) FROM courses),
		       (SELECT COUNT(*) FROM classes WHERE start_date >= CURRENT_DATE),
		       (SELECT COUNT(*) FROM registrations WHERE registration_date >= CURRENT_DATE - $1::int),
		       (SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_date >= CURRENT_DATE - $2::int)
	`, RecentRegistrationDays, RevenueDays).Scan(
		&l.Professors, &l.Students, &l.Courses, &l.UpcomingClasses, &l.RecentRegistrations, &l.Revenue30Days,
	)
	if err != nil {
		return Live{}, runtime.Classify("live stats", err)
	}
	return l, nil
}

// Payments totals completed and pending payments.
func (r *Reader) Payments(ctx context.Context) (PaymentSummary, error) {
	var p PaymentSummary
	err := r.db.Querier().QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE payment_status = $1), 0),
		       COALESCE(SUM(amount) FILTER (WHERE payment_status = $2), 0),
		       COUNT(*)
		FROM payments
	`, string(models.StatusCompleted), string(models.StatusPending)).Scan(&p.TotalCompleted, &p.TotalPending, &p.Count)
	if err != nil {
		return PaymentSummary{}, runtime.Classify("payment stats", err)
	}
	return p, nil
}

// RecentRegistrations lists the latest registrations.
func (r *Reader) RecentRegistrations(ctx context.Context, limit int) ([]RecentRegistration, error) {
	rows, err := r.db.Querier().Query(ctx, `
		SELECT s.first_name || ' ' || s.last_name, s.phone_number, r.registration_date,
		       c.course_title, p.first_name || ' ' || p.last_name
		FROM registrations r
		JOIN students s ON r.membership_id = s.membership_id
		JOIN classes cl ON r.class_id = cl.class_id
		JOIN courses c ON cl.course_id = c.course_id
		JOIN professors p ON cl.professor_id = p.professor_id
		ORDER BY r.registration_date DESC, r.registration_id DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, runtime.Classify("recent registrations", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RecentRegistration, error) {
		var rr RecentRegistration
		err := row.Scan(&rr.StudentName, &rr.PhoneNumber, &rr.RegistrationDate, &rr.CourseTitle, &rr.ProfessorName)
		return rr, err
	})
	if err != nil {
		return nil, runtime.Classify("recent registrations", err)
	}
	return list, nil
}

// UpcomingClasses lists classes starting today or later, soonest first.
func (r *Reader) UpcomingClasses(ctx context.Context, limit int) ([]UpcomingClass, error) {
	rows, err := r.db.Querier().Query(ctx, `
		SELECT cl.class_id, c.course_title, p.first_name || ' ' || p.last_name,
		       cl.start_date, cl.class_time, cl.class_days,
		       (SELECT COUNT(*) FROM registrations WHERE class_id = cl.class_id),
		       cl.capacity
		FROM classes cl
		JOIN courses c ON cl.course_id = c.course_id
		JOIN professors p ON cl.professor_id = p.professor_id
		WHERE cl.start_date >= CURRENT_DATE
		ORDER BY cl.start_date, cl.class_id
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, runtime.Classify("upcoming classes", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (UpcomingClass, error) {
		var uc UpcomingClass
		err := row.Scan(&uc.ClassID, &uc.CourseTitle, &uc.ProfessorName, &uc.StartDate,
			&uc.ClassTime, &uc.ClassDays, &uc.Registered, &uc.Capacity)
		return uc, err
	})
	if err != nil {
		return nil, runtime.Classify("upcoming classes", err)
	}
	return list, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// String renders the summary for log lines.
func (d Dashboard) String() string {
	return fmt.Sprintf("professors=%d students=%d courses=%d classes=%d registrations=%d revenue=%.2f",
		d.Professors, d.Students, d.Courses, d.Classes, d.Registrations, d.Revenue)
}
