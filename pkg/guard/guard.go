// Package guard refuses to delete catalog rows that other rows still depend on.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/langschool/backoffice/pkg/runtime"
)

var (
	// ErrReferentialBlock is returned when dependents prevent a delete.
	ErrReferentialBlock = errors.New("delete blocked by dependent rows")

	// ErrNotFound is returned when the row to delete does not exist.
	ErrNotFound = runtime.ErrNotFound

	// ErrUnknownKind is returned for an entity kind the guard does not cover.
	ErrUnknownKind = errors.New("unknown entity kind")
)

// Kind names a guarded entity.
type Kind string

const (
	Professor Kind = "professor"
	Student   Kind = "student"
	Course    Kind = "course"
	Class     Kind = "class"
)

// Kinds lists every guarded entity.
var Kinds = []Kind{Professor, Student, Course, Class}

// ParseKind accepts singular or plural entity names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "professor", "professors":
		return Professor, nil
	case "student", "students":
		return Student, nil
	case "course", "courses":
		return Course, nil
	case "class", "classes":
		return Class, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Decision is the outcome of a delete check.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason"`
	Dependents int64  `json:"dependents"`
}

// BlockedError carries the refused decision. It matches ErrReferentialBlock.
type BlockedError struct {
	Kind     Kind
	ID       int64
	Decision Decision
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("cannot delete %s %d: %s", e.Kind, e.ID, e.Decision.Reason)
}

// Is reports whether target is ErrReferentialBlock.
func (e *BlockedError) Is(target error) bool {
	return target == ErrReferentialBlock
}

// rule describes how a kind is stored and what holds it in place.
type rule struct {
	table     string
	key       string
	child     string // table whose rows block the delete
	childKey  string
	auxiliary []string // tables keyed by key, deleted along with the parent
	blocked   string
	deleted   string
}

var rules = map[Kind]rule{
	Professor: {
		table:     "professors",
		key:       "professor_id",
		child:     "classes",
		childKey:  "professor_id",
		auxiliary: []string{"professor_languages"},
		blocked:   "professor still teaches classes",
		deleted:   "professor deleted",
	},
	Student: {
		table:    "students",
		key:      "membership_id",
		child:    "registrations",
		childKey: "membership_id",
		blocked:  "student still has registrations",
		deleted:  "student deleted",
	},
	Course: {
		table:    "courses",
		key:      "course_id",
		child:    "classes",
		childKey: "course_id",
		blocked:  "course still has classes",
		deleted:  "course deleted",
	},
	Class: {
		table:    "classes",
		key:      "class_id",
		child:    "registrations",
		childKey: "class_id",
		blocked:  "class still has registered students",
		deleted:  "class deleted",
	},
}

// Guard checks and performs guarded deletes.
type Guard struct {
	db *runtime.DB
}

// New creates a Guard over db.
func New(db *runtime.DB) *Guard {
	return &Guard{db: db}
}

// CanDelete reports whether the row could be deleted now. It does not lock;
// DeleteIfAllowed re-checks under a row lock.
func (g *Guard) CanDelete(ctx context.Context, kind Kind, id int64) (Decision, error) {
	r, ok := rules[kind]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	q := g.db.Querier()
	var exists bool
	err := q.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", r.table, r.key), id).Scan(&exists)
	if err != nil {
		return Decision{}, runtime.Classify("find "+string(kind), err)
	}
	if !exists {
		return Decision{}, fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}

	return decide(ctx, q, r, id)
}

// DeleteIfAllowed deletes the row and its auxiliary rows when nothing depends
// on it. A refusal returns the decision together with a *BlockedError and
// leaves every row intact.
func (g *Guard) DeleteIfAllowed(ctx context.Context, kind Kind, id int64) (Decision, error) {
	r, ok := rules[kind]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var decision Decision
	err := g.db.WithTx(ctx, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 FOR UPDATE", r.key, r.table, r.key), id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
		}
		if err != nil {
			return runtime.Classify("lock "+string(kind), err)
		}

		decision, err = decide(ctx, tx, r, id)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return &BlockedError{Kind: kind, ID: id, Decision: decision}
		}

		for _, table := range r.auxiliary {
			if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, r.key), id); err != nil {
				return runtime.Classify("delete "+table, err)
			}
		}

		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", r.table, r.key), id); err != nil {
			classified := runtime.Classify("delete "+string(kind), err)
			if errors.Is(classified, runtime.ErrForeignKeyViolation) {
				decision = Decision{Allowed: false, Reason: r.blocked}
				return &BlockedError{Kind: kind, ID: id, Decision: decision}
			}
			return classified
		}
		return nil
	})
	if err != nil {
		return decision, err
	}

	return decision, nil
}

func decide(ctx context.Context, q runtime.Querier, r rule, id int64) (Decision, error) {
	var count int64
	err := q.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", r.child, r.childKey), id).Scan(&count)
	if err != nil {
		return Decision{}, runtime.Classify("count "+r.child, err)
	}

	if count > 0 {
		return Decision{Allowed: false, Reason: r.blocked, Dependents: count}, nil
	}
	return Decision{Allowed: true, Reason: r.deleted}, nil
}

// DeleteProfessor deletes a professor and its language rows when no class references it.
func (g *Guard) DeleteProfessor(ctx context.Context, id int64) (Decision, error) {
	return g.DeleteIfAllowed(ctx, Professor, id)
}

// DeleteStudent deletes a student with no registrations.
func (g *Guard) DeleteStudent(ctx context.Context, id int64) (Decision, error) {
	return g.DeleteIfAllowed(ctx, Student, id)
}

// DeleteCourse deletes a course with no classes.
func (g *Guard) DeleteCourse(ctx context.Context, id int64) (Decision, error) {
	return g.DeleteIfAllowed(ctx, Course, id)
}

// DeleteClass deletes a class with no registrations.
func (g *Guard) DeleteClass(ctx context.Context, id int64) (Decision, error) {
	return g.DeleteIfAllowed(ctx, Class, id)
}
