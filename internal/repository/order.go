package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/checkout"
)

const (
	createIntentSQL = `INSERT INTO order_intents (
		id, user_id, idempotency_key,
		email, phone_number, country, first_name, last_name,
		address, apartment_no, postal_code, city,
		payment_method, status, coupon_code,
		original_amount, discounted_amount, discount_percent)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, 'pending', $14, $15, $16, $17)`

	completeIntentSQL = `UPDATE order_intents SET status = 'completed' WHERE id = $1`

	selectIntentCols = `SELECT id, user_id, COALESCE(idempotency_key, ''),
		email, phone_number, country, first_name, last_name,
		address, apartment_no, postal_code, city,
		payment_method, status, COALESCE(coupon_code, ''),
		original_amount, discounted_amount, discount_percent, created_at
	FROM order_intents`

	findIntentByKeySQL = selectIntentCols + ` WHERE user_id = $1 AND idempotency_key = $2`

	listIntentsByUserSQL = selectIntentCols + ` WHERE user_id = $1 ORDER BY created_at DESC`
)

var _ checkout.Repository = (*OrderIntentRepository)(nil)

// OrderIntentRepository implements checkout.Repository backed by PostgreSQL.
type OrderIntentRepository struct {
	pool *pgxpool.Pool
}

// NewOrderIntentRepository returns an OrderIntentRepository using the pool.
func NewOrderIntentRepository(pool *pgxpool.Pool) *OrderIntentRepository {
	return &OrderIntentRepository{pool: pool}
}

// Create inserts the intent as pending and flips it to completed in the same
// transaction, so an observer never sees a committed pending row for a
// successful checkout. An idempotency-key collision maps to
// checkout.ErrDuplicateIntent.
func (r *OrderIntentRepository) Create(ctx context.Context, o *checkout.OrderIntent) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createIntentSQL,
			o.ID, o.UserID, nullable(o.IdempotencyKey),
			o.Email, o.PhoneNumber, o.Country, o.FirstName, o.LastName,
			o.Address, o.ApartmentNo, o.PostalCode, o.City,
			string(o.PaymentMethod), nullable(o.CouponCode),
			o.OriginalAmount, o.DiscountedAmount, o.DiscountPercent,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, completeIntentSQL, o.ID)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return checkout.ErrDuplicateIntent
		}
		return fmt.Errorf("creating order intent %q: %w", o.ID, err)
	}

	o.Status = checkout.StatusCompleted
	return nil
}

// FindByIdempotencyKey returns the intent a user previously created under the
// given key, or checkout.ErrIntentNotFound.
func (r *OrderIntentRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*checkout.OrderIntent, error) {
	rows, err := r.pool.Query(ctx, findIntentByKeySQL, userID, key)
	if err != nil {
		return nil, fmt.Errorf("finding order intent by key: %w", err)
	}

	intent, err := pgx.CollectExactlyOneRow(rows, scanIntent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrIntentNotFound
		}
		return nil, fmt.Errorf("finding order intent by key: %w", err)
	}
	return &intent, nil
}

// ListByUser returns the user's intents, newest first.
func (r *OrderIntentRepository) ListByUser(ctx context.Context, userID string) ([]checkout.OrderIntent, error) {
	rows, err := r.pool.Query(ctx, listIntentsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing order intents for %q: %w", userID, err)
	}

	intents, err := pgx.CollectRows(rows, scanIntent)
	if err != nil {
		return nil, fmt.Errorf("listing order intents for %q: %w", userID, err)
	}
	return intents, nil
}

func scanIntent(row pgx.CollectableRow) (checkout.OrderIntent, error) {
	var (
		o             checkout.OrderIntent
		paymentMethod string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.IdempotencyKey,
		&o.Email, &o.PhoneNumber, &o.Country, &o.FirstName, &o.LastName,
		&o.Address, &o.ApartmentNo, &o.PostalCode, &o.City,
		&paymentMethod, &status, &o.CouponCode,
		&o.OriginalAmount, &o.DiscountedAmount, &o.DiscountPercent, &o.CreatedAt,
	)
	o.PaymentMethod = checkout.PaymentMethod(paymentMethod)
	o.Status = checkout.Status(status)
	return o, err
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
