package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tribetrade/storefront/internal/domain/checkout"
)

var _ checkout.AttemptLog = (*AttemptLog)(nil)

const (
	upsertAttemptSQL = `INSERT INTO checkout_attempts
		(payment_ref, buyer_id, order_id, total_amount, delivery_method, state)
	VALUES ($1, $2, $3, $4, $5, 'PENDING_PAYMENT')
	ON CONFLICT (payment_ref) DO UPDATE SET
		order_id = EXCLUDED.order_id,
		total_amount = EXCLUDED.total_amount,
		delivery_method = EXCLUDED.delivery_method`

	markPaidSQL = `UPDATE checkout_attempts
	SET state = 'PAID', paid_at = now()
	WHERE payment_ref = $1`
)

// AttemptLog records checkout submits keyed by payment reference. Retries
// with the same reference upsert the same row, matching the idempotency
// contract with the backend.
type AttemptLog struct {
	pool *pgxpool.Pool
}

// NewAttemptLog returns an AttemptLog using the given pool.
func NewAttemptLog(pool *pgxpool.Pool) *AttemptLog {
	return &AttemptLog{pool: pool}
}

// RecordPending upserts the attempt in PENDING_PAYMENT state.
func (l *AttemptLog) RecordPending(ctx context.Context, a checkout.Attempt) error {
	_, err := l.pool.Exec(ctx, upsertAttemptSQL,
		a.PaymentRef, a.BuyerID, a.OrderID, a.TotalAmount, string(a.DeliveryMethod),
	)
	if err != nil {
		return errors.Wrapf(err, "record attempt %q", a.PaymentRef)
	}
	return nil
}

// MarkPaid flips the attempt to PAID.
func (l *AttemptLog) MarkPaid(ctx context.Context, paymentRef string) error {
	if _, err := l.pool.Exec(ctx, markPaidSQL, paymentRef); err != nil {
		return errors.Wrapf(err, "mark attempt %q paid", paymentRef)
	}
	return nil
}
