package enrollment

import (
	"fmt"
	"math"

	"github.com/langschool/backoffice/pkg/models"
	"github.com/langschool/backoffice/pkg/runtime"
)

// PaymentIntent is the payment that accompanies a create or attach call.
// Blank Method and Status default to cash and pending.
type PaymentIntent struct {
	Amount float64
	Method models.PaymentMethod
	Status models.PaymentStatus
}

// PaymentUpdate is the payment part of an edit. An Amount of 0 removes the
// linked payment. Blank Method and Status keep the stored values when the
// payment is updated in place.
type PaymentUpdate struct {
	Amount float64
	Method models.PaymentMethod
	Status models.PaymentStatus
}

type paymentAction int

const (
	paymentKeep paymentAction = iota
	paymentUpdate
	paymentInsert
	paymentDelete
)

func (a paymentAction) String() string {
	switch a {
	case paymentUpdate:
		return "update"
	case paymentInsert:
		return "insert"
	case paymentDelete:
		return "delete"
	default:
		return "keep"
	}
}

// planPayment picks the edit branch from whether a payment is linked and the
// requested amount.
func planPayment(linked bool, amount float64) paymentAction {
	switch {
	case amount > 0 && linked:
		return paymentUpdate
	case amount > 0:
		return paymentInsert
	case linked:
		return paymentDelete
	default:
		return paymentKeep
	}
}

// MaxAmount is the largest amount the payments.amount column holds.
const MaxAmount = 9999999999.99

// checkAmount rejects amounts that are not finite or do not fit the column.
// Non-positive amounts pass; callers treat them as "no payment".
func checkAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount > MaxAmount {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

// validateEnums rejects non-canonical method or status values. Blank values
// are allowed and resolved by the caller.
func validateEnums(method models.PaymentMethod, status models.PaymentStatus) error {
	if method != "" && !method.Valid() {
		return &runtime.ValidationError{Field: "payment_method", Message: "unknown payment method " + string(method)}
	}
	if status != "" && !status.Valid() {
		return &runtime.ValidationError{Field: "payment_status", Message: "unknown payment status " + string(status)}
	}
	return nil
}

func withDefaults(method models.PaymentMethod, status models.PaymentStatus) (models.PaymentMethod, models.PaymentStatus) {
	if method == "" {
		method = models.MethodCash
	}
	if status == "" {
		status = models.StatusPending
	}
	return method, status
}
