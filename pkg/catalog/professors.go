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

// ProfessorInput holds the editable professor fields.
type ProfessorInput struct {
	FirstName    string   `json:"first_name" validate:"required,max=100"`
	LastName     string   `json:"last_name" validate:"required,max=100"`
	Specialty    string   `json:"specialty" validate:"max=200"`
	PhoneNumber  string   `json:"phone_number" validate:"required,max=20"`
	Email        string   `json:"email" validate:"required,email,max=255"`
	Salary       float64  `json:"salary" validate:"gte=0"`
	SessionCount int      `json:"session_count" validate:"gte=0"`
	Languages    []string `json:"languages" validate:"dive,required,max=100"`
}

func (in *ProfessorInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Specialty = strings.TrimSpace(in.Specialty)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// CreateProfessor inserts a professor with its languages.
func (c *Catalog) CreateProfessor(ctx context.Context, in ProfessorInput) (int64, error) {
	in.normalize()
	if err := c.check(in); err != nil {
		return 0, err
	}

	var id int64
	err := c.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := professorContactFree(ctx, tx, in.Email, in.PhoneNumber, 0); err != nil {
			return err
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO professors (first_name, last_name, specialty, phone_number, email, salary, session_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING professor_id
		`, in.FirstName, in.LastName, in.Specialty, in.PhoneNumber, in.Email, in.Salary, in.SessionCount).Scan(&id)
		if err != nil {
			return writeError("insert professor", err)
		}

		return replaceLanguages(ctx, tx, id, in.Languages)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateProfessor replaces a professor's fields and languages.
func (c *Catalog) UpdateProfessor(ctx context.Context, id int64, in ProfessorInput) error {
	in.normalize()
	if err := c.check(in); err != nil {
		return err
	}

	return c.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := professorContactFree(ctx, tx, in.Email, in.PhoneNumber, id); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE professors
			SET first_name = $1, last_name = $2, specialty = $3,
			    phone_number = $4, email = $5, salary = $6, session_count = $7
			WHERE professor_id = $8
		`, in.FirstName, in.LastName, in.Specialty, in.PhoneNumber, in.Email, in.Salary, in.SessionCount, id)
		if err != nil {
			return writeError("update professor", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: professor %d", ErrNotFound, id)
		}

		return replaceLanguages(ctx, tx, id, in.Languages)
	})
}

// GetProfessor returns a professor with its languages.
func (c *Catalog) GetProfessor(ctx context.Context, id int64) (models.Professor, error) {
	q := c.db.Querier()

	var p models.Professor
	err := q.QueryRow(ctx, `
		SELECT professor_id, first_name, last_name, specialty, phone_number, email, salary, session_count
		FROM professors WHERE professor_id = $1
	`, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Specialty, &p.PhoneNumber, &p.Email, &p.Salary, &p.SessionCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Professor{}, fmt.Errorf("%w: professor %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Professor{}, runtime.Classify("get professor", err)
	}

	rows, err := q.Query(ctx, "SELECT language FROM professor_languages WHERE professor_id = $1 ORDER BY language", id)
	if err != nil {
		return models.Professor{}, runtime.Classify("get professor languages", err)
	}
	p.Languages, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return models.Professor{}, runtime.Classify("get professor languages", err)
	}

	return p, nil
}

// professorContactFree fails with ErrConflict when another professor already
// uses the email or phone number. excludeID skips the professor being edited.
func professorContactFree(ctx context.Context, q runtime.Querier, email, phone string, excludeID int64) error {
	var taken bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM professors
			WHERE (email = $1 OR phone_number = $2) AND professor_id <> $3
		)
	`, email, phone, excludeID).Scan(&taken)
	if err != nil {
		return runtime.Classify("check professor contact", err)
	}
	if taken {
		return fmt.Errorf("%w: a professor with this email or phone number already exists", ErrConflict)
	}
	return nil
}

func replaceLanguages(ctx context.Context, tx pgx.Tx, professorID int64, languages []string) error {
	if _, err := tx.Exec(ctx, "DELETE FROM professor_languages WHERE professor_id = $1", professorID); err != nil {
		return writeError("clear professor languages", err)
	}

	seen := make(map[string]bool, len(languages))
	var rows [][]any
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		rows = append(rows, []any{professorID, lang})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx, pgx.Identifier{"professor_languages"}, []string{"professor_id", "language"}, pgx.CopyFromRows(rows))
	return writeError("insert professor languages", err)
}
