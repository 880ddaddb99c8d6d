package enrollment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
)

func TestPlanPayment(t *testing.T) {
	tests := []struct {
		linked   bool
		amount   float64
		expected paymentAction
	}{
		{linked: true, amount: 100, expected: paymentUpdate},
		{linked: false, amount: 100, expected: paymentInsert},
		{linked: true, amount: 0, expected: paymentDelete},
		{linked: false, amount: 0, expected: paymentKeep},
		{linked: true, amount: -5, expected: paymentDelete},
		{linked: false, amount: -5, expected: paymentKeep},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("linked=%v/amount=%v", test.linked, test.amount), func(t *testing.T) {
			got := planPayment(test.linked, test.amount)
			assert.Equal(t, test.expected, got, "got %s", got)
		})
	}
}

func TestBlankFormAmountDeletesLinkedPayment(t *testing.T) {
	assert.Equal(t, paymentDelete, planPayment(true, models.ParseAmount("")))
	assert.Equal(t, paymentDelete, planPayment(true, models.ParseAmount("oops")))
}

func TestWithDefaults(t *testing.T) {
	method, status := withDefaults("", "")
	assert.Equal(t, models.MethodCash, method)
	assert.Equal(t, models.StatusPending, status)

	method, status = withDefaults(models.MethodOnline, models.StatusCompleted)
	assert.Equal(t, models.MethodOnline, method)
	assert.Equal(t, models.StatusCompleted, status)
}

func TestValidateEnums(t *testing.T) {
	assert.NoError(t, validateEnums("", ""))
	assert.NoError(t, validateEnums(models.MethodCheck, models.StatusPending))

	var validation *runtime.ValidationError
	err := validateEnums("bitcoin", "")
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "payment_method", validation.Field)

	err = validateEnums("", "refunded")
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "payment_status", validation.Field)
}

func TestStoreError(t *testing.T) {
	t.Run("unique index becomes duplicate enrollment", func(t *testing.T) {
		err := storeError("update registration", &pgconn.PgError{Code: "23505", ConstraintName: uniqueRegistrationIndex})
		assert.ErrorIs(t, err, ErrDuplicateEnrollment)
	})

	t.Run("other unique violation stays a duplicate key", func(t *testing.T) {
		err := storeError("insert", &pgconn.PgError{Code: "23505", ConstraintName: "registrations_payment_id_key"})
		assert.ErrorIs(t, err, runtime.ErrDuplicateKey)
		assert.NotErrorIs(t, err, ErrDuplicateEnrollment)
	})

	t.Run("foreign key becomes not found", func(t *testing.T) {
		err := storeError("insert registration", &pgconn.PgError{Code: "23503"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("check violation becomes validation error", func(t *testing.T) {
		var validation *runtime.ValidationError
		err := storeError("insert payment", &pgconn.PgError{Code: "23514", ConstraintName: "payments_amount_check"})
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, "payments_amount_check", validation.Field)
	})

	t.Run("data exception becomes validation error", func(t *testing.T) {
		var validation *runtime.ValidationError
		err := storeError("insert payment", &pgconn.PgError{Code: "22003", ColumnName: "amount"})
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, "amount", validation.Field)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)

		err = storeError("insert payment", &pgconn.PgError{Code: "22001"})
		assert.ErrorAs(t, err, &validation)
		assert.Equal(t, "value", validation.Field)
	})

	t.Run("connection failure is retryable", func(t *testing.T) {
		err := storeError("lock class", errors.New("connection reset by peer"))
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("business outcomes pass through", func(t *testing.T) {
		wrapped := fmt.Errorf("%w: class 3", ErrCapacityExceeded)
		assert.Same(t, wrapped, storeError("x", wrapped))
	})

	t.Run("no rows is not found", func(t *testing.T) {
		assert.ErrorIs(t, storeError("x", pgx.ErrNoRows), ErrNotFound)
	})

	assert.NoError(t, storeError("x", nil))
}

func TestCheckAmount(t *testing.T) {
	for _, amount := range []float64{0, -5, 0.01, 150, MaxAmount} {
		assert.NoError(t, checkAmount(amount), "%v", amount)
	}
	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e12, MaxAmount + 1} {
		assert.ErrorIs(t, checkAmount(amount), ErrInvalidAmount, "%v", amount)
	}
}

func TestReportLogsStoreFailures(t *testing.T) {
	var buf bytes.Buffer
	svc := (&Service{}).WithLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	failure := storeError("lock class", errors.New("connection reset by peer"))
	assert.Same(t, failure, svc.report(ctx, "create registration", failure))
	assert.Contains(t, buf.String(), `"msg":"store failure"`)
	assert.Contains(t, buf.String(), `"op":"create registration"`)

	buf.Reset()
	assert.ErrorIs(t, svc.report(ctx, "create registration", ErrCapacityExceeded), ErrCapacityExceeded)
	assert.NoError(t, svc.report(ctx, "create registration", nil))
	assert.Empty(t, buf.String())
}
