package enrollment

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/langschool/backoffice/pkg/models"
)

func insertAndLinkPayment(ctx context.Context, tx pgx.Tx, registrationID int64, amount float64, method models.PaymentMethod, status models.PaymentStatus) (int64, error) {
	method, status = withDefaults(method, status)

	var paymentID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO payments (amount, payment_method, payment_status, payment_date)
		VALUES ($1, $2, $3, CURRENT_DATE)
		RETURNING payment_id
	`, amount, string(method), string(status)).Scan(&paymentID)
	if err != nil {
		return 0, storeError("insert payment", err)
	}

	_, err = tx.Exec(ctx, "UPDATE registrations SET payment_id = $1 WHERE registration_id = $2", paymentID, registrationID)
	if err != nil {
		return 0, storeError("link payment", err)
	}

	return paymentID, nil
}

// applyPayment runs the edit branch chosen by planPayment.
func applyPayment(ctx context.Context, tx pgx.Tx, registrationID int64, paymentID *int64, update PaymentUpdate) error {
	switch planPayment(paymentID != nil, update.Amount) {
	case paymentUpdate:
		_, err := tx.Exec(ctx, `
			UPDATE payments
			SET amount = $1,
			    payment_method = COALESCE(NULLIF($2, ''), payment_method),
			    payment_status = COALESCE(NULLIF($3, ''), payment_status),
			    payment_date = CURRENT_DATE
			WHERE payment_id = $4
		`, update.Amount, string(update.Method), string(update.Status), *paymentID)
		return storeError("update payment", err)

	case paymentInsert:
		_, err := insertAndLinkPayment(ctx, tx, registrationID, update.Amount, update.Method, update.Status)
		return err

	case paymentDelete:
		if _, err := tx.Exec(ctx, "UPDATE registrations SET payment_id = NULL WHERE registration_id = $1", registrationID); err != nil {
			return storeError("unlink payment", err)
		}
		_, err := tx.Exec(ctx, "DELETE FROM payments WHERE payment_id = $1", *paymentID)
		return storeError("delete payment", err)
	}

	return nil
}
