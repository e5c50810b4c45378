// Package coupon defines discount coupons and their redemption contract.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been deactivated.
	ErrInactive = errors.New("coupon is inactive")
	// ErrExpired is returned when the coupon is at or past its expiry time.
	ErrExpired = errors.New("coupon expired")
	// ErrAlreadyRedeemed is returned when the user has already redeemed the coupon.
	ErrAlreadyRedeemed = errors.New("coupon already redeemed by this user")
	// ErrConflict is returned when creating a coupon whose code already exists.
	ErrConflict = errors.New("coupon code already exists")
	// ErrBadCode is returned when a code fails format validation.
	ErrBadCode = errors.New("invalid coupon code format")
)

// DefaultValidity is the expiry applied when a coupon is created without one.
const DefaultValidity = 30 * 24 * time.Hour

// Coupon is a percentage discount code. Redemptions are tracked per user in a
// separate table, never inline, so the at-most-once-per-user invariant is a
// storage constraint rather than an application-level check.
type Coupon struct {
	Code            string
	DiscountPercent decimal.Decimal
	Active          bool
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// Expired reports whether the coupon is unusable at the given instant.
// The expiry bound is inclusive: a coupon is unusable at exactly ExpiresAt.
func (c *Coupon) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Repository is the persistent coupon store.
type Repository interface {
	// FindByCode looks up a coupon by code, case-insensitively.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// Create stores a new coupon. Returns ErrConflict when a coupon with the
	// same code (case-insensitive) already exists.
	Create(ctx context.Context, c *Coupon) error

	// Redeem marks the coupon as used by userID. The check-and-append must be
	// a single conditional write: concurrent calls for the same (code, user)
	// pair must yield exactly one success, the rest ErrAlreadyRedeemed.
	// Also returns ErrNotFound, ErrInactive, or ErrExpired as appropriate.
	Redeem(ctx context.Context, code, userID string) error

	// Unredeem removes userID from the coupon's redemption set. Idempotent;
	// used only as the compensating step of a failed checkout.
	Unredeem(ctx context.Context, code, userID string) error

	// Redeemed reports whether userID has already redeemed the coupon.
	Redeemed(ctx context.Context, code, userID string) (bool, error)
}

// Normalize trims and uppercases a raw code.
func Normalize(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		b := code[i]
		if b == ' ' || b == '\t' {
			continue
		}
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out = append(out, b)
	}
	return string(out)
}

// ValidateCode checks a normalized code against the 3-20 char uppercase
// alphanumeric format. Returns ErrBadCode on violation.
func ValidateCode(code string) error {
	if len(code) < 3 || len(code) > 20 {
		return ErrBadCode
	}
	for i := 0; i < len(code); i++ {
		b := code[i]
		if (b < 'A' || b > 'Z') && (b < '0' || b > '9') {
			return ErrBadCode
		}
	}
	return nil
}
