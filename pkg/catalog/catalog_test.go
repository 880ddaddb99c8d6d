package catalog

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langschool/backoffice/pkg/runtime"
)

func newTestCatalog() *Catalog {
	return &Catalog{validate: NewValidator()}
}

func validProfessor() ProfessorInput {
	return ProfessorInput{
		FirstName:   "Mina",
		LastName:    "Karimi",
		Specialty:   "IELTS",
		PhoneNumber: "09120000001",
		Email:       "mina@example.com",
		Salary:      1200,
		Languages:   []string{"English"},
	}
}

func validStudent() StudentInput {
	return StudentInput{
		FirstName:  "Ali",
		LastName:   "Rezaei",
		NationalID: "0012345678",
		BirthDate:  "2001-04-12",
	}
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var validation *runtime.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, field, validation.Field)
}

func TestProfessorValidation(t *testing.T) {
	c := newTestCatalog()

	assert.NoError(t, c.check(validProfessor()))

	in := validProfessor()
	in.Email = "not-an-email"
	requireFieldError(t, c.check(in), "email")

	in = validProfessor()
	in.FirstName = ""
	requireFieldError(t, c.check(in), "first_name")

	in = validProfessor()
	in.Salary = -1
	requireFieldError(t, c.check(in), "salary")

	in = validProfessor()
	in.Languages = []string{"English", ""}
	requireFieldError(t, c.check(in), "languages[1]")
}

func TestProfessorNormalize(t *testing.T) {
	in := validProfessor()
	in.Email = "  Mina@Example.COM "
	in.PhoneNumber = " 0912 "
	in.normalize()
	assert.Equal(t, "mina@example.com", in.Email)
	assert.Equal(t, "0912", in.PhoneNumber)
}

func TestStudentNationalID(t *testing.T) {
	c := newTestCatalog()

	tests := []struct {
		nationalID string
		valid      bool
	}{
		{"0012345678", true},
		{"001234567", false},
		{"00123456789", false},
		{"00123x5678", false},
		{"", false},
	}

	for _, test := range tests {
		in := validStudent()
		in.NationalID = test.nationalID
		_, err := c.studentArgs(&in)
		if test.valid {
			assert.NoError(t, err, test.nationalID)
		} else {
			requireFieldError(t, err, "national_id")
		}
	}
}

func TestStudentBirthDate(t *testing.T) {
	c := newTestCatalog()

	in := validStudent()
	birthDate, err := c.studentArgs(&in)
	require.NoError(t, err)
	require.NotNil(t, birthDate)
	assert.Equal(t, 2001, birthDate.Year())

	in = validStudent()
	in.BirthDate = ""
	birthDate, err = c.studentArgs(&in)
	require.NoError(t, err)
	assert.Nil(t, birthDate)

	in = validStudent()
	in.BirthDate = "12/04/2001"
	_, err = c.studentArgs(&in)
	requireFieldError(t, err, "birth_date")
}

func TestClassValidation(t *testing.T) {
	c := newTestCatalog()
	valid := func() ClassInput {
		return ClassInput{CourseID: 1, ProfessorID: 2, Capacity: 10, StartDate: "2025-09-01", EndDate: "2025-12-01"}
	}

	dates, err := c.classArgs(&ClassInput{CourseID: 1, ProfessorID: 2, Capacity: 10, StartDate: "2025-09-01", EndDate: "2025-09-01"})
	require.NoError(t, err)
	assert.True(t, dates.start.Equal(dates.end))

	in := valid()
	in.Capacity = 0
	_, err = c.classArgs(&in)
	requireFieldError(t, err, "capacity")

	in = valid()
	in.EndDate = "2025-08-01"
	_, err = c.classArgs(&in)
	requireFieldError(t, err, "end_date")

	in = valid()
	in.ProfessorID = 0
	_, err = c.classArgs(&in)
	requireFieldError(t, err, "professor_id")
}

func TestCourseDefaults(t *testing.T) {
	c := newTestCatalog()

	in := CourseInput{Title: " Conversation B1 "}
	require.NoError(t, c.courseArgs(&in))
	assert.Equal(t, "Conversation B1", in.Title)
	assert.Equal(t, "active", string(in.Status))

	in = CourseInput{Title: "Grammar", Status: "archived"}
	requireFieldError(t, c.courseArgs(&in), "course_status")
}

func TestWriteError(t *testing.T) {
	err := writeError("insert professor", &pgconn.PgError{Code: "23505", ConstraintName: "professors_email_key"})
	assert.ErrorIs(t, err, ErrConflict)

	err = writeError("insert class", &pgconn.PgError{Code: "23503", ConstraintName: "classes_course_id_fkey"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = writeError("insert class", &pgconn.PgError{Code: "23514", ConstraintName: "classes_capacity_check"})
	requireFieldError(t, err, "classes_capacity_check")

	err = writeError("insert class", errors.New("broken pipe"))
	assert.ErrorIs(t, err, runtime.ErrStoreUnavailable)

	assert.NoError(t, writeError("x", nil))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\tmp`, escapeLike(`c:\tmp`))
	assert.Equal(t, "Ali", escapeLike("Ali"))
}
