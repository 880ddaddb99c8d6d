package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
)

// StudentInput holds the editable student fields. BirthDate is YYYY-MM-DD or blank.
type StudentInput struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	NationalID  string `json:"national_id" validate:"required,len=10,numeric"`
	BirthDate   string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	Province    string `json:"province" validate:"max=100"`
	City        string `json:"city" validate:"max=100"`
	Street      string `json:"street" validate:"max=255"`
	Plaque      string `json:"plaque" validate:"max=20"`
}

func (in *StudentInput) normalize() {
	for _, f := range []*string{&in.FirstName, &in.LastName, &in.NationalID, &in.BirthDate,
		&in.PhoneNumber, &in.Email, &in.Province, &in.City, &in.Street, &in.Plaque} {
		*f = strings.TrimSpace(*f)
	}
}

func (c *Catalog) studentArgs(in *StudentInput) (*time.Time, error) {
	in.normalize()
	if err := c.check(in); err != nil {
		return nil, err
	}
	return parseDate("birth_date", in.BirthDate)
}

// CreateStudent inserts a student and returns the new membership id.
func (c *Catalog) CreateStudent(ctx context.Context, in StudentInput) (int64, error) {
	birthDate, err := c.studentArgs(&in)
	if err != nil {
		return 0, err
	}

	var id int64
	err = c.db.Querier().QueryRow(ctx, `
		INSERT INTO students (first_name, last_name, national_id, birth_date,
		                      phone_number, email, province, city, street, plaque)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING membership_id
	`, in.FirstName, in.LastName, in.NationalID, birthDate,
		in.PhoneNumber, in.Email, in.Province, in.City, in.Street, in.Plaque).Scan(&id)
	if err != nil {
		return 0, writeError("insert student", err)
	}
	return id, nil
}

// UpdateStudent replaces a student's fields.
func (c *Catalog) UpdateStudent(ctx context.Context, id int64, in StudentInput) error {
	birthDate, err := c.studentArgs(&in)
	if err != nil {
		return err
	}

	tag, err := c.db.Querier().Exec(ctx, `
		UPDATE students
		SET first_name = $1, last_name = $2, national_id = $3, birth_date = $4,
		    phone_number = $5, email = $6, province = $7, city = $8,
		    street = $9, plaque = $10
		WHERE membership_id = $11
	`, in.FirstName, in.LastName, in.NationalID, birthDate,
		in.PhoneNumber, in.Email, in.Province, in.City, in.Street, in.Plaque, id)
	if err != nil {
		return writeError("update student", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: student %d", ErrNotFound, id)
	}
	return nil
}

// GetStudent returns a student by membership id.
func (c *Catalog) GetStudent(ctx context.Context, id int64) (models.Student, error) {
	var s models.Student
	err := c.db.Querier().QueryRow(ctx, `
		SELECT membership_id, first_name, last_name, national_id, birth_date,
		       phone_number, email, province, city, street, plaque
		FROM students WHERE membership_id = $1
	`, id).Scan(&s.ID, &s.FirstName, &s.LastName, &s.NationalID, &s.BirthDate,
		&s.PhoneNumber, &s.Email, &s.Province, &s.City, &s.Street, &s.Plaque)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Student{}, fmt.Errorf("%w: student %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Student{}, runtime.Classify("get student", err)
	}
	return s, nil
}

// SearchStudents matches q against names, national id, phone, email and city.
// A non-positive limit returns at most 10 rows.
func (c *Catalog) SearchStudents(ctx context.Context, q string, limit int) ([]models.Student, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Student{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	pattern := "%" + escapeLike(q) + "%"
	matches := make([]runtime.Condition, 0, len(studentSearchColumns))
	for _, column := range studentSearchColumns {
		matches = append(matches, runtime.ILike(column, pattern))
	}
	var where runtime.Where
	clause, args := where.Add(runtime.AnyOf(matches...)).Build(1)

	rows, err := c.db.Querier().Query(ctx, `
		SELECT membership_id, first_name, last_name, national_id, birth_date,
		       phone_number, email, province, city, street, plaque
		FROM students`+clause+`
		ORDER BY last_name, first_name
		LIMIT $1
	`, append([]any{limit}, args...)...)
	if err != nil {
		return nil, runtime.Classify("search students", err)
	}

	students, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Student, error) {
		var s models.Student
		err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.NationalID, &s.BirthDate,
			&s.PhoneNumber, &s.Email, &s.Province, &s.City, &s.Street, &s.Plaque)
		return s, err
	})
	if err != nil {
		return nil, runtime.Classify("search students", err)
	}
	return students, nil
}

var studentSearchColumns = []string{"first_name", "last_name", "national_id", "phone_number", "email", "city"}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
