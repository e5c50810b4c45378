package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/coupon"
)

const (
	findCouponSQL = `SELECT code, discount_percent, active, expires_at, created_at
		FROM coupons WHERE code = UPPER($1)`

	createCouponSQL = `INSERT INTO coupons (code, discount_percent, active, expires_at)
		VALUES ($1, $2, $3, $4)`

	// The guarded INSERT is the whole redemption check-and-append in one
	// statement: the SELECT only yields a row for an active, unexpired
	// coupon, and the primary key turns a duplicate append into a no-op.
	redeemSQL = `INSERT INTO coupon_redemptions (coupon_code, user_id)
		SELECT c.code, $2 FROM coupons c
		WHERE c.code = UPPER($1) AND c.active AND c.expires_at > now()
		ON CONFLICT (coupon_code, user_id) DO NOTHING`

	unredeemSQL = `DELETE FROM coupon_redemptions
		WHERE coupon_code = UPPER($1) AND user_id = $2`

	hasRedeemedSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_redemptions
		WHERE coupon_code = UPPER($1) AND user_id = $2)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by code (case-insensitive; the SQL applies
// UPPER() on the parameter). Returns coupon.ErrNotFound when absent.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// Create stores a new coupon. A unique violation on the code maps to
// coupon.ErrConflict.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL,
		c.Code, c.DiscountPercent, c.Active, c.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrConflict
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Redeem performs the conditional append of userID to the coupon's redemption
// set in a single statement. Zero rows affected means the write was refused;
// a follow-up read classifies why, but the mutation itself never races: the
// (coupon_code, user_id) primary key makes a concurrent duplicate lose at
// write time rather than after a stale read.
func (r *CouponRepository) Redeem(ctx context.Context, code, userID string) error {
	tag, err := r.pool.Exec(ctx, redeemSQL, code, userID)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.classifyRefusal(ctx, code, userID)
}

// classifyRefusal explains a zero-row Redeem: already redeemed, missing,
// inactive, or expired.
func (r *CouponRepository) classifyRefusal(ctx context.Context, code, userID string) error {
	var redeemed bool
	if err := r.pool.QueryRow(ctx, hasRedeemedSQL, code, userID).Scan(&redeemed); err != nil {
		return fmt.Errorf("classifying redemption refusal for %q: %w", code, err)
	}
	if redeemed {
		return coupon.ErrAlreadyRedeemed
	}

	c, err := r.FindByCode(ctx, code)
	if err != nil {
		return err // ErrNotFound or a wrapped store error
	}
	if !c.Active {
		return coupon.ErrInactive
	}
	if c.Expired(time.Now()) {
		return coupon.ErrExpired
	}
	// The coupon became usable between the write and this read. The caller
	// treats this as retryable.
	return coupon.ErrAlreadyRedeemed
}

// Redeemed reports whether userID has already redeemed the coupon.
func (r *CouponRepository) Redeemed(ctx context.Context, code, userID string) (bool, error) {
	var redeemed bool
	if err := r.pool.QueryRow(ctx, hasRedeemedSQL, code, userID).Scan(&redeemed); err != nil {
		return false, fmt.Errorf("checking redemption of %q: %w", code, err)
	}
	return redeemed, nil
}

// Unredeem removes the user's redemption. Idempotent: deleting an absent row
// is a success.
func (r *CouponRepository) Unredeem(ctx context.Context, code, userID string) error {
	_, err := r.pool.Exec(ctx, unredeemSQL, code, userID)
	if err != nil {
		return fmt.Errorf("unredeeming coupon %q: %w", code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.Code, &c.DiscountPercent, &c.Active, &c.ExpiresAt, &c.CreatedAt)
	return c, err
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
