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

// ClassInput holds the editable class fields. Dates are YYYY-MM-DD.
type ClassInput struct {
	CourseID    int64   `json:"course_id" validate:"required,gt=0"`
	ProfessorID int64   `json:"professor_id" validate:"required,gt=0"`
	Capacity    int     `json:"capacity" validate:"gt=0"`
	StartDate   string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	ClassTime   string  `json:"class_time" validate:"max=50"`
	ClassDays   string  `json:"class_days" validate:"max=100"`
	Classroom   *string `json:"classroom" validate:"omitempty,max=50"`
}

type classDates struct {
	start, end time.Time
}

func (c *Catalog) classArgs(in *ClassInput) (classDates, error) {
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	if err := c.check(in); err != nil {
		return classDates{}, err
	}

	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return classDates{}, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return classDates{}, err
	}
	if start.After(*end) {
		return classDates{}, &runtime.ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return classDates{start: *start, end: *end}, nil
}

// CreateClass schedules a class section. Unknown course or professor ids
// fail with ErrNotFound.
func (c *Catalog) CreateClass(ctx context.Context, in ClassInput) (int64, error) {
	dates, err := c.classArgs(&in)
	if err != nil {
		return 0, err
	}

	var id int64
	err = c.db.Querier().QueryRow(ctx, `
		INSERT INTO classes (course_id, professor_id, capacity, start_date, end_date,
		                     class_time, class_days, classroom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING class_id
	`, in.CourseID, in.ProfessorID, in.Capacity, dates.start, dates.end,
		in.ClassTime, in.ClassDays, in.Classroom).Scan(&id)
	if err != nil {
		return 0, writeError("insert class", err)
	}
	return id, nil
}

// UpdateClass replaces a class's fields. Lowering the capacity below the
// current registration count is allowed; existing registrations are kept.
func (c *Catalog) UpdateClass(ctx context.Context, id int64, in ClassInput) error {
	dates, err := c.classArgs(&in)
	if err != nil {
		return err
	}

	tag, err := c.db.Querier().Exec(ctx, `
		UPDATE classes
		SET course_id = $1, professor_id = $2, capacity = $3, start_date = $4,
		    end_date = $5, class_time = $6, class_days = $7, classroom = $8
		WHERE class_id = $9
	`, in.CourseID, in.ProfessorID, in.Capacity, dates.start, dates.end,
		in.ClassTime, in.ClassDays, in.Classroom, id)
	if err != nil {
		return writeError("update class", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: class %d", ErrNotFound, id)
	}
	return nil
}

// GetClass returns a class by id.
func (c *Catalog) GetClass(ctx context.Context, id int64) (models.Class, error) {
	var cl models.Class
	err := c.db.Querier().QueryRow(ctx, `
		SELECT class_id, course_id, professor_id, capacity, start_date, end_date,
		       class_time, class_days, classroom
		FROM classes WHERE class_id = $1
	`, id).Scan(&cl.ID, &cl.CourseID, &cl.ProfessorID, &cl.Capacity, &cl.StartDate, &cl.EndDate,
		&cl.ClassTime, &cl.ClassDays, &cl.Classroom)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Class{}, fmt.Errorf("%w: class %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Class{}, runtime.Classify("get class", err)
	}
	return cl, nil
}
