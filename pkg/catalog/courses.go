package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
)

// CourseInput holds the editable course fields. A blank Status means active.
type CourseInput struct {
	Title         string              `json:"course_title" validate:"required,max=200"`
	Level         string              `json:"course_level" validate:"max=100"`
	SessionCount  int                 `json:"session_count" validate:"gte=0"`
	Capacity      int                 `json:"course_capacity" validate:"gte=0"`
	Status        models.CourseStatus `json:"course_status" validate:"omitempty,oneof=active inactive"`
	LevelID       *int64              `json:"level_id" validate:"omitempty,gt=0"`
	Description   string              `json:"description"`
	Prerequisites string              `json:"prerequisites"`
	TuitionFee    float64             `json:"tuition_fee" validate:"gte=0"`
}

func (c *Catalog) courseArgs(in *CourseInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Level = strings.TrimSpace(in.Level)
	if in.Status == "" {
		in.Status = models.CourseActive
	}
	return c.check(in)
}

// CreateCourse inserts a course. An unknown level id fails with ErrNotFound.
func (c *Catalog) CreateCourse(ctx context.Context, in CourseInput) (int64, error) {
	if err := c.courseArgs(&in); err != nil {
		return 0, err
	}

	var id int64
	err := c.db.Querier().QueryRow(ctx, `
		INSERT INTO courses (course_title, course_level, session_count, course_capacity,
		                     course_status, level_id, description, prerequisites, tuition_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING course_id
	`, in.Title, in.Level, in.SessionCount, in.Capacity,
		string(in.Status), in.LevelID, in.Description, in.Prerequisites, in.TuitionFee).Scan(&id)
	if err != nil {
		return 0, writeError("insert course", err)
	}
	return id, nil
}

// UpdateCourse replaces a course's fields.
func (c *Catalog) UpdateCourse(ctx context.Context, id int64, in CourseInput) error {
	if err := c.courseArgs(&in); err != nil {
		return err
	}

	tag, err := c.db.Querier().Exec(ctx, `
		UPDATE courses
		SET course_title = $1, course_level = $2, session_count = $3, course_capacity = $4,
		    course_status = $5, level_id = $6, description = $7, prerequisites = $8,
		    tuition_fee = $9
		WHERE course_id = $10
	`, in.Title, in.Level, in.SessionCount, in.Capacity,
		string(in.Status), in.LevelID, in.Description, in.Prerequisites, in.TuitionFee, id)
	if err != nil {
		return writeError("update course", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: course %d", ErrNotFound, id)
	}
	return nil
}

// GetCourse returns a course by id.
func (c *Catalog) GetCourse(ctx context.Context, id int64) (models.Course, error) {
	var co models.Course
	var status string
	err := c.db.Querier().QueryRow(ctx, `
		SELECT course_id, course_title, course_level, session_count, course_capacity,
		       course_status, level_id, description, prerequisites, tuition_fee
		FROM courses WHERE course_id = $1
	`, id).Scan(&co.ID, &co.Title, &co.Level, &co.SessionCount, &co.Capacity,
		&status, &co.LevelID, &co.Description, &co.Prerequisites, &co.TuitionFee)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Course{}, fmt.Errorf("%w: course %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Course{}, runtime.Classify("get course", err)
	}
	co.Status = models.CourseStatus(status)
	return co, nil
}

// CreateLevel inserts a course level and returns its id.
func (c *Catalog) CreateLevel(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &runtime.ValidationError{Field: "level_name", Message: "is required"}
	}

	var id int64
	err := c.db.Querier().QueryRow(ctx, "INSERT INTO levels (level_name) VALUES ($1) RETURNING level_id", name).Scan(&id)
	if err != nil {
		return 0, writeError("insert level", err)
	}
	return id, nil
}
