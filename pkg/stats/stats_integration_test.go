//go:build integration

package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/stats"
	"github.com/langschool/backoffice/pkg/testdb"
)

func TestReader(t *testing.T) {
	db := testdb.Start(t)
	reader := stats.NewReader(db)
	svc := enrollment.NewService(db)
	seed := testdb.NewSeeder(t, db)
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		testdb.Reset(t, db)

		d, err := reader.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, stats.Dashboard{}, d)

		recent, err := reader.RecentRegistrations(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("Totals", func(t *testing.T) {
		testdb.Reset(t, db)
		course := seed.Course()
		prof := seed.Professor("English")
		soon := seed.Class(course, prof, 4, time.Now().AddDate(0, 0, 2))
		past := seed.Class(course, prof, 4, time.Now().AddDate(0, -3, 0))

		_, err := svc.CreateRegistration(ctx, seed.Student(), soon, &enrollment.PaymentIntent{Amount: 100, Status: models.StatusCompleted})
		require.NoError(t, err)
		_, err = svc.CreateRegistration(ctx, seed.Student(), soon, &enrollment.PaymentIntent{Amount: 40})
		require.NoError(t, err)
		_, err = svc.CreateRegistration(ctx, seed.Student(), past, nil)
		require.NoError(t, err)

		d, err := reader.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), d.Professors)
		assert.Equal(t, int64(3), d.Students)
		assert.Equal(t, int64(1), d.Courses)
		assert.Equal(t, int64(2), d.Classes)
		assert.Equal(t, int64(3), d.Registrations)
		assert.Equal(t, 100.0, d.Revenue)

		live, err := reader.Live(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), live.UpcomingClasses)
		assert.Equal(t, int64(3), live.RecentRegistrations)
		assert.Equal(t, 140.0, live.Revenue30Days)

		p, err := reader.Payments(ctx)
		require.NoError(t, err)
		assert.Equal(t, stats.PaymentSummary{TotalCompleted: 100, TotalPending: 40, Count: 2}, p)

		upcoming, err := reader.UpcomingClasses(ctx, 5)
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, soon, upcoming[0].ClassID)
		assert.Equal(t, int64(2), upcoming[0].Registered)
		assert.Equal(t, int64(2), upcoming[0].Available())

		recent, err := reader.RecentRegistrations(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, recent, 2)
	})
}
