//go:build integration

package enrollment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
	"github.com/langschool/backoffice/pkg/testdb"
)

func setup(t *testing.T) (*runtime.DB, *enrollment.Service, *testdb.Seeder) {
	t.Helper()
	db := testdb.Start(t)
	return db, enrollment.NewService(db), testdb.NewSeeder(t, db)
}

func countPayments(t *testing.T, db *runtime.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Pool().QueryRow(context.Background(), "SELECT COUNT(*) FROM payments").Scan(&n))
	return n
}

func TestEnrollment(t *testing.T) {
	db, svc, seed := setup(t)
	ctx := context.Background()

	t.Run("DuplicateEnrollment", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)
		student := seed.Student()

		_, err := svc.CreateRegistration(ctx, student, class, nil)
		require.NoError(t, err)

		_, err = svc.CreateRegistration(ctx, student, class, nil)
		assert.ErrorIs(t, err, enrollment.ErrDuplicateEnrollment)

		a, err := svc.GetClassAvailability(ctx, class)
		require.NoError(t, err)
		assert.Equal(t, int64(1), a.Registered)
	})

	t.Run("CapacityTwo", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(2)
		s1, s2, s3 := seed.Student(), seed.Student(), seed.Student()

		_, err := svc.CreateRegistration(ctx, s1, class, nil)
		require.NoError(t, err)
		_, err = svc.CreateRegistration(ctx, s2, class, nil)
		require.NoError(t, err)

		_, err = svc.CreateRegistration(ctx, s3, class, nil)
		assert.ErrorIs(t, err, enrollment.ErrCapacityExceeded)

		a, err := svc.GetClassAvailability(ctx, class)
		require.NoError(t, err)
		assert.Equal(t, enrollment.Availability{ClassID: class, Capacity: 2, Registered: 2, Available: 0}, a)
	})

	t.Run("ConcurrentCreatesDoNotOvershoot", func(t *testing.T) {
		testdb.Reset(t, db)
		const capacity, callers = 3, 10
		class := seed.OpenClass(capacity)

		students := make([]int64, callers)
		for i := range students {
			students[i] = seed.Student()
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
			rejected int
		)
		for _, student := range students {
			wg.Add(1)
			go func(student int64) {
				defer wg.Done()
				_, err := svc.CreateRegistration(ctx, student, class, nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, enrollment.ErrCapacityExceeded):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(student)
		}
		wg.Wait()

		assert.Equal(t, capacity, accepted)
		assert.Equal(t, callers-capacity, rejected)

		a, err := svc.GetClassAvailability(ctx, class)
		require.NoError(t, err)
		assert.Equal(t, int64(capacity), a.Registered)
	})

	t.Run("ConcurrentDuplicates", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(10)
		student := seed.Student()

		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.CreateRegistration(ctx, student, class, nil)
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, enrollment.ErrDuplicateEnrollment)
		}
		assert.Equal(t, 1, ok)
	})

	t.Run("MissingRows", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(2)

		_, err := svc.CreateRegistration(ctx, 9999, class, nil)
		assert.ErrorIs(t, err, enrollment.ErrNotFound)

		_, err = svc.CreateRegistration(ctx, seed.Student(), 9999, nil)
		assert.ErrorIs(t, err, enrollment.ErrNotFound)

		_, err = svc.GetClassAvailability(ctx, 9999)
		assert.ErrorIs(t, err, enrollment.ErrNotFound)
	})

	t.Run("PaymentRoundTrip", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)
		student := seed.Student()

		id, err := svc.CreateRegistration(ctx, student, class, &enrollment.PaymentIntent{
			Amount: 100, Method: models.MethodCardToCard, Status: models.StatusCompleted,
		})
		require.NoError(t, err)

		detail, err := svc.GetRegistration(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, detail.Payment)
		assert.Equal(t, 100.0, detail.Payment.Amount)
		assert.Equal(t, models.MethodCardToCard, detail.Payment.Method)
		assert.Equal(t, models.StatusCompleted, detail.Payment.Status)

		err = svc.UpdateRegistration(ctx, id, student, class, enrollment.PaymentUpdate{Amount: 150})
		require.NoError(t, err)
		detail, err = svc.GetRegistration(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, detail.Payment)
		assert.Equal(t, 150.0, detail.Payment.Amount)
		assert.Equal(t, models.MethodCardToCard, detail.Payment.Method, "blank method keeps the stored one")

		err = svc.UpdateRegistration(ctx, id, student, class, enrollment.PaymentUpdate{Amount: 0})
		require.NoError(t, err)
		detail, err = svc.GetRegistration(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, detail.Payment)
		assert.Nil(t, detail.PaymentID)
		assert.Zero(t, countPayments(t, db))
	})

	t.Run("UpdateInsertsPayment", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)
		student := seed.Student()

		id, err := svc.CreateRegistration(ctx, student, class, nil)
		require.NoError(t, err)

		err = svc.UpdateRegistration(ctx, id, student, class, enrollment.PaymentUpdate{Amount: 80})
		require.NoError(t, err)

		detail, err := svc.GetRegistration(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, detail.Payment)
		assert.Equal(t, models.MethodCash, detail.Payment.Method)
		assert.Equal(t, models.StatusPending, detail.Payment.Status)
	})

	t.Run("BlankAmountDeletesPayment", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)
		student := seed.Student()

		id, err := svc.CreateRegistration(ctx, student, class, &enrollment.PaymentIntent{Amount: 60})
		require.NoError(t, err)

		err = svc.UpdateRegistration(ctx, id, student, class, enrollment.PaymentUpdate{
			Amount: models.ParseAmount(""),
		})
		require.NoError(t, err)
		assert.Zero(t, countPayments(t, db))
	})

	t.Run("DeleteRegistration", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)

		withPayment, err := svc.CreateRegistration(ctx, seed.Student(), class, &enrollment.PaymentIntent{Amount: 40})
		require.NoError(t, err)
		withoutPayment, err := svc.CreateRegistration(ctx, seed.Student(), class, nil)
		require.NoError(t, err)
		require.Equal(t, int64(1), countPayments(t, db))

		require.NoError(t, svc.DeleteRegistration(ctx, withPayment))
		require.NoError(t, svc.DeleteRegistration(ctx, withoutPayment))
		require.NoError(t, svc.DeleteRegistration(ctx, withoutPayment), "deleting twice succeeds")

		assert.Zero(t, countPayments(t, db))
		_, err = svc.GetRegistration(ctx, withPayment)
		assert.ErrorIs(t, err, enrollment.ErrNotFound)
	})

	t.Run("MoveToFullClass", func(t *testing.T) {
		testdb.Reset(t, db)
		full := seed.OpenClass(1)
		open := seed.OpenClass(3)
		s1, s2 := seed.Student(), seed.Student()

		_, err := svc.CreateRegistration(ctx, s1, full, nil)
		require.NoError(t, err)
		id, err := svc.CreateRegistration(ctx, s2, open, nil)
		require.NoError(t, err)

		err = svc.UpdateRegistration(ctx, id, s2, full, enrollment.PaymentUpdate{})
		assert.ErrorIs(t, err, enrollment.ErrCapacityExceeded)

		err = svc.UpdateRegistration(ctx, id, s1, open, enrollment.PaymentUpdate{})
		require.NoError(t, err, "same class edit skips the capacity check")

		other, err := svc.CreateRegistration(ctx, s2, open, nil)
		require.NoError(t, err)
		err = svc.UpdateRegistration(ctx, other, s1, open, enrollment.PaymentUpdate{})
		assert.ErrorIs(t, err, enrollment.ErrDuplicateEnrollment)
	})

	t.Run("FailedPaymentRollsBackCreate", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)
		student := seed.Student()

		// 0.001 rounds to 0.00 in the amount column and fails its check.
		_, err := svc.CreateRegistration(ctx, student, class, &enrollment.PaymentIntent{Amount: 0.001})
		var validation *runtime.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.NotErrorIs(t, err, enrollment.ErrStoreUnavailable)

		a, err := svc.GetClassAvailability(ctx, class)
		require.NoError(t, err)
		assert.Zero(t, a.Registered, "registration insert is rolled back")
		assert.Zero(t, countPayments(t, db))

		_, err = svc.CreateRegistration(ctx, student, class, nil)
		assert.NoError(t, err, "no leftover row blocks a retry")
	})

	t.Run("FailedPaymentRollsBackUpdate", func(t *testing.T) {
		testdb.Reset(t, db)
		from := seed.OpenClass(5)
		to := seed.OpenClass(5)
		s1, s2 := seed.Student(), seed.Student()

		id, err := svc.CreateRegistration(ctx, s1, from, nil)
		require.NoError(t, err)

		err = svc.UpdateRegistration(ctx, id, s2, to, enrollment.PaymentUpdate{Amount: 0.001})
		var validation *runtime.ValidationError
		require.ErrorAs(t, err, &validation)

		detail, err := svc.GetRegistration(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, s1, detail.StudentID)
		assert.Equal(t, from, detail.ClassID)
		assert.Nil(t, detail.PaymentID)
		assert.Zero(t, countPayments(t, db))

		a, err := svc.GetClassAvailability(ctx, to)
		require.NoError(t, err)
		assert.Zero(t, a.Registered)
	})

	t.Run("AmountOutOfRange", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)

		_, err := svc.CreateRegistration(ctx, seed.Student(), class, &enrollment.PaymentIntent{Amount: 1e12})
		assert.ErrorIs(t, err, enrollment.ErrInvalidAmount)

		a, err := svc.GetClassAvailability(ctx, class)
		require.NoError(t, err)
		assert.Zero(t, a.Registered)
	})

	t.Run("LoweredCapacityGoesNegative", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(3)
		for range 3 {
			_, err := svc.CreateRegistration(ctx, seed.Student(), class, nil)
			require.NoError(t, err)
		}

		_, err := db.Pool().Exec(ctx, "UPDATE classes SET capacity = 1 WHERE class_id = $1", class)
		require.NoError(t, err)

		a, err := svc.GetClassAvailability(ctx, class)
		require.NoError(t, err)
		assert.Equal(t, int64(1), a.Capacity)
		assert.Equal(t, int64(3), a.Registered)
		assert.Equal(t, int64(-2), a.Available)

		_, err = svc.CreateRegistration(ctx, seed.Student(), class, nil)
		assert.ErrorIs(t, err, enrollment.ErrCapacityExceeded)
	})

	t.Run("AttachPayment", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)
		id, err := svc.CreateRegistration(ctx, seed.Student(), class, nil)
		require.NoError(t, err)

		_, err = svc.AttachPayment(ctx, id, enrollment.PaymentIntent{Amount: 0})
		assert.ErrorIs(t, err, enrollment.ErrInvalidAmount)

		paymentID, err := svc.AttachPayment(ctx, id, enrollment.PaymentIntent{Amount: 90, Method: models.MethodOnline})
		require.NoError(t, err)
		assert.Positive(t, paymentID)

		_, err = svc.AttachPayment(ctx, id, enrollment.PaymentIntent{Amount: 10})
		assert.ErrorIs(t, err, enrollment.ErrPaymentExists)

		_, err = svc.AttachPayment(ctx, 9999, enrollment.PaymentIntent{Amount: 10})
		assert.ErrorIs(t, err, enrollment.ErrNotFound)
	})

	t.Run("ListRegistrations", func(t *testing.T) {
		testdb.Reset(t, db)
		class := seed.OpenClass(5)
		other := seed.OpenClass(5)

		paid, err := svc.CreateRegistration(ctx, seed.Student(), class, &enrollment.PaymentIntent{Amount: 10, Status: models.StatusCompleted})
		require.NoError(t, err)
		_, err = svc.CreateRegistration(ctx, seed.Student(), class, nil)
		require.NoError(t, err)
		_, err = svc.CreateRegistration(ctx, seed.Student(), other, nil)
		require.NoError(t, err)

		all, err := svc.ListRegistrations(ctx, enrollment.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		inClass, err := svc.ListRegistrations(ctx, enrollment.Filter{ClassID: class})
		require.NoError(t, err)
		assert.Len(t, inClass, 2)

		completed, err := svc.ListRegistrations(ctx, enrollment.Filter{PaymentStatus: models.StatusCompleted})
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.Equal(t, paid, completed[0].ID)
		assert.NotEmpty(t, completed[0].StudentName)
		assert.NotEmpty(t, completed[0].CourseTitle)
	})
}
