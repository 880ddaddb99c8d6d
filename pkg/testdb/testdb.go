//go:build integration

// Package testdb starts a migrated PostgreSQL container for integration tests.
package testdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/langschool/backoffice/pkg/catalog"
	"github.com/langschool/backoffice/pkg/migration"
	"github.com/langschool/backoffice/pkg/runtime"
)

// Start runs a PostgreSQL container, applies the embedded migrations and
// returns a connected DB. The container is removed when the test ends.
func Start(t *testing.T) *runtime.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("school"),
		postgres.WithUsername("school"),
		postgres.WithPassword("school"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := runtime.ConnectWithURL(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	migrations, err := migration.Embedded()
	require.NoError(t, err)
	_, err = migration.NewExecutor(db.Pool()).Up(ctx, migrations)
	require.NoError(t, err, "apply migrations")

	return db
}

// Reset empties every table and restarts their sequences.
func Reset(t *testing.T, db *runtime.DB) {
	t.Helper()

	_, err := db.Pool().Exec(context.Background(), `TRUNCATE
		registrations, payments, classes, courses, levels,
		professor_languages, professors, students
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

var seq atomic.Int64

// Seeder inserts catalog rows through the catalog package.
type Seeder struct {
	t       *testing.T
	catalog *catalog.Catalog
}

// NewSeeder returns a Seeder bound to db.
func NewSeeder(t *testing.T, db *runtime.DB) *Seeder {
	return &Seeder{t: t, catalog: catalog.New(db)}
}

// Professor inserts a professor teaching the given languages.
func (s *Seeder) Professor(languages ...string) int64 {
	s.t.Helper()
	n := seq.Add(1)

	id, err := s.catalog.CreateProfessor(context.Background(), catalog.ProfessorInput{
		FirstName:   "Prof",
		LastName:    fmt.Sprintf("Number%d", n),
		PhoneNumber: fmt.Sprintf("0912%07d", n),
		Email:       fmt.Sprintf("prof%d@school.test", n),
		Languages:   languages,
	})
	require.NoError(s.t, err)
	return id
}

// Student inserts a student.
func (s *Seeder) Student() int64 {
	s.t.Helper()
	n := seq.Add(1)

	id, err := s.catalog.CreateStudent(context.Background(), catalog.StudentInput{
		FirstName:   "Student",
		LastName:    fmt.Sprintf("Number%d", n),
		NationalID:  fmt.Sprintf("%010d", n),
		PhoneNumber: fmt.Sprintf("0935%07d", n),
	})
	require.NoError(s.t, err)
	return id
}

// Course inserts an active course.
func (s *Seeder) Course() int64 {
	s.t.Helper()

	id, err := s.catalog.CreateCourse(context.Background(), catalog.CourseInput{
		Title: fmt.Sprintf("English %d", seq.Add(1)),
	})
	require.NoError(s.t, err)
	return id
}

// Class inserts a class of the given capacity starting start.
func (s *Seeder) Class(courseID, professorID int64, capacity int, start time.Time) int64 {
	s.t.Helper()

	id, err := s.catalog.CreateClass(context.Background(), catalog.ClassInput{
		CourseID:    courseID,
		ProfessorID: professorID,
		Capacity:    capacity,
		StartDate:   start.Format(time.DateOnly),
		EndDate:     start.AddDate(0, 2, 0).Format(time.DateOnly),
		ClassTime:   "17:00-18:30",
		ClassDays:   "Sat, Mon",
	})
	require.NoError(s.t, err)
	return id
}

// OpenClass inserts a course, a professor and a class starting next week.
func (s *Seeder) OpenClass(capacity int) int64 {
	s.t.Helper()
	return s.Class(s.Course(), s.Professor(), capacity, time.Now().AddDate(0, 0, 7))
}
