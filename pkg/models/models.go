// Package models defines the rows of the back office schema and the
// canonical payment enumerations stored with them.
package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Professor teaches class sections.
type Professor struct {
	ID           int64    `json:"professor_id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Specialty    string   `json:"specialty"`
	PhoneNumber  string   `json:"phone_number"`
	Email        string   `json:"email"`
	Salary       float64  `json:"salary"`
	SessionCount int      `json:"session_count"`
	Languages    []string `json:"languages,omitempty"`
}

// Student is a school member. Its key is the membership id.
type Student struct {
	ID          int64      `json:"membership_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	NationalID  string     `json:"national_id"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	PhoneNumber string     `json:"phone_number"`
	Email       string     `json:"email"`
	Province    string     `json:"province"`
	City        string     `json:"city"`
	Street      string     `json:"street"`
	Plaque      string     `json:"plaque"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// CourseStatus marks a course as offered or withdrawn.
type CourseStatus string

const (
	CourseActive   CourseStatus = "active"
	CourseInactive CourseStatus = "inactive"
)

// Course is a subject offered by the school.
type Course struct {
	ID            int64        `json:"course_id"`
	Title         string       `json:"course_title"`
	Level         string       `json:"course_level"`
	SessionCount  int          `json:"session_count"`
	Capacity      int          `json:"course_capacity"`
	Status        CourseStatus `json:"course_status"`
	LevelID       *int64       `json:"level_id,omitempty"`
	Description   string       `json:"description"`
	Prerequisites string       `json:"prerequisites"`
	TuitionFee    float64      `json:"tuition_fee"`
}

// Class is a scheduled section of a course taught by a professor.
type Class struct {
	ID          int64     `json:"class_id"`
	CourseID    int64     `json:"course_id"`
	ProfessorID int64     `json:"professor_id"`
	Capacity    int       `json:"capacity"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	ClassTime   string    `json:"class_time"`
	ClassDays   string    `json:"class_days"`
	Classroom   *string   `json:"classroom,omitempty"`
}

// Registration links one student to one class.
type Registration struct {
	ID               int64     `json:"registration_id"`
	StudentID        int64     `json:"membership_id"`
	ClassID          int64     `json:"class_id"`
	RegistrationDate time.Time `json:"registration_date"`
	PaymentID        *int64    `json:"payment_id,omitempty"`
}

// Payment exists only as the target of one registration.
type Payment struct {
	ID     int64         `json:"payment_id"`
	Amount float64       `json:"amount"`
	Method PaymentMethod `json:"payment_method"`
	Status PaymentStatus `json:"payment_status"`
	Date   time.Time     `json:"payment_date"`
}

// RegistrationDetail is a registration joined with its student, class and
// optional payment, as shown on listing and edit screens.
type RegistrationDetail struct {
	Registration
	StudentName   string   `json:"student_name"`
	StudentPhone  string   `json:"student_phone"`
	CourseTitle   string   `json:"course_title"`
	ProfessorName string   `json:"professor_name"`
	ClassTime     string   `json:"class_time"`
	ClassDays     string   `json:"class_days"`
	Payment       *Payment `json:"payment,omitempty"`
}

// PaymentMethod is the canonical payment method stored in payments.payment_method.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCardToCard   PaymentMethod = "card_to_card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOnline       PaymentMethod = "online"
	MethodCheck        PaymentMethod = "check"
)

// PaymentMethods lists every accepted method in display order.
var PaymentMethods = []PaymentMethod{MethodCash, MethodCardToCard, MethodBankTransfer, MethodOnline, MethodCheck}

// Valid reports whether m is one of the canonical methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCardToCard, MethodBankTransfer, MethodOnline, MethodCheck:
		return true
	}
	return false
}

// PaymentStatus is the canonical payment state stored in payments.payment_status.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
)

// Valid reports whether s is one of the canonical statuses.
func (s PaymentStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// ParseAmount reads a form amount. Blank, unparsable and non-positive inputs
// all resolve to 0, which callers treat as "no payment".
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return amount
}
