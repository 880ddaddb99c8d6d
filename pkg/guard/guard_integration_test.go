//go:build integration

package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/guard"
	"github.com/langschool/backoffice/pkg/testdb"
)

func TestGuard(t *testing.T) {
	db := testdb.Start(t)
	g := guard.New(db)
	svc := enrollment.NewService(db)
	seed := testdb.NewSeeder(t, db)
	ctx := context.Background()

	t.Run("ProfessorWithLanguagesOnly", func(t *testing.T) {
		testdb.Reset(t, db)
		prof := seed.Professor("English", "French")

		decision, err := g.CanDelete(ctx, guard.Professor, prof)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		decision, err = g.DeleteProfessor(ctx, prof)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		var languages int64
		require.NoError(t, db.Pool().QueryRow(ctx,
			"SELECT COUNT(*) FROM professor_languages WHERE professor_id = $1", prof).Scan(&languages))
		assert.Zero(t, languages)
	})

	t.Run("ProfessorTeachingClass", func(t *testing.T) {
		testdb.Reset(t, db)
		course := seed.Course()
		prof := seed.Professor("German")
		seed.Class(course, prof, 5, t0())

		decision, err := g.DeleteProfessor(ctx, prof)
		require.ErrorIs(t, err, guard.ErrReferentialBlock)
		assert.False(t, decision.Allowed)
		assert.Equal(t, int64(1), decision.Dependents)

		var blocked *guard.BlockedError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, guard.Professor, blocked.Kind)

		var exists bool
		require.NoError(t, db.Pool().QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM professor_languages WHERE professor_id = $1)", prof).Scan(&exists))
		assert.True(t, exists, "refused delete keeps language rows")
	})

	t.Run("StudentAndClass", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(3)
		student := seed.Student()
		id, err := svc.CreateRegistration(ctx, student, class, nil)
		require.NoError(t, err)

		decision, err := g.CanDelete(ctx, guard.Student, student)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)

		_, err = g.DeleteClass(ctx, class)
		assert.ErrorIs(t, err, guard.ErrReferentialBlock)

		require.NoError(t, svc.DeleteRegistration(ctx, id))

		_, err = g.DeleteStudent(ctx, student)
		require.NoError(t, err)
		_, err = g.DeleteClass(ctx, class)
		require.NoError(t, err)
	})

	t.Run("CourseWithClasses", func(t *testing.T) {
		testdb.Reset(t, db)
		course := seed.Course()
		class := seed.Class(course, seed.Professor(), 2, t0())

		_, err := g.DeleteCourse(ctx, course)
		assert.ErrorIs(t, err, guard.ErrReferentialBlock)

		_, err = g.DeleteClass(ctx, class)
		require.NoError(t, err)
		_, err = g.DeleteCourse(ctx, course)
		require.NoError(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		testdb.Reset(t, db)

		_, err := g.CanDelete(ctx, guard.Student, 9999)
		assert.ErrorIs(t, err, guard.ErrNotFound)

		_, err = g.DeleteIfAllowed(ctx, guard.Course, 9999)
		assert.ErrorIs(t, err, guard.ErrNotFound)

		_, err = g.DeleteIfAllowed(ctx, guard.Kind("level"), 1)
		assert.ErrorIs(t, err, guard.ErrUnknownKind)
	})
}

func t0() time.Time {
	return time.Now().AddDate(0, 0, 3)
}
