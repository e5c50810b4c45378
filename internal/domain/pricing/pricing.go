// Package pricing computes the final chargeable amount for a checkout.
// Quote is a pure function over a subtotal, an optional coupon snapshot, and
// the policy constants; it performs no I/O.
package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/coupon"
)

var (
	// ErrAmountOutOfRange is returned when the subtotal is outside the
	// policy's order bounds.
	ErrAmountOutOfRange = errors.New("order amount out of range")
)

// BelowMinOrderError rejects a coupon applied to a subtotal under the
// policy minimum.
type BelowMinOrderError struct {
	Min decimal.Decimal
}

func (e *BelowMinOrderError) Error() string {
	return "minimum order amount of " + e.Min.StringFixed(2) + " required to use a coupon"
}

// Policy holds the business constants applied to every quote.
type Policy struct {
	// MinOrderForCoupon is the smallest subtotal a coupon may apply to.
	MinOrderForCoupon decimal.Decimal
	// MaxDiscountCap bounds the absolute discount regardless of percentage.
	MaxDiscountCap decimal.Decimal
	// MinOrderAmount and MaxOrderAmount bound every order's subtotal.
	MinOrderAmount decimal.Decimal
	MaxOrderAmount decimal.Decimal
	// MinCharge is the floor a discounted total is clamped to instead of
	// rejecting a zero-or-negative result.
	MinCharge decimal.Decimal
}

// DefaultPolicy mirrors the production storefront constants.
func DefaultPolicy() Policy {
	return Policy{
		MinOrderForCoupon: decimal.NewFromInt(50),
		MaxDiscountCap:    decimal.NewFromInt(500),
		MinOrderAmount:    decimal.NewFromInt(1),
		MaxOrderAmount:    decimal.NewFromInt(10000),
		MinCharge:         decimal.RequireFromString("0.01"),
	}
}

// Quote is the computed pricing for one checkout attempt.
type Quote struct {
	FinalAmount     decimal.Decimal
	AppliedDiscount decimal.Decimal
	DiscountPercent decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Compute derives the final amount for a subtotal and an optional coupon.
// The coupon, when present, must be active and unexpired at now, and the
// subtotal must meet the coupon minimum. Rounding to 2 decimal places happens
// once, on the final figures.
func (p Policy) Compute(subtotal decimal.Decimal, c *coupon.Coupon, now time.Time) (Quote, error) {
	if subtotal.LessThan(p.MinOrderAmount) || subtotal.GreaterThan(p.MaxOrderAmount) {
		return Quote{}, ErrAmountOutOfRange
	}

	if c == nil {
		return Quote{
			FinalAmount:     subtotal.Round(2),
			AppliedDiscount: decimal.Zero,
			DiscountPercent: decimal.Zero,
		}, nil
	}

	if !c.Active {
		return Quote{}, coupon.ErrInactive
	}
	if c.Expired(now) {
		return Quote{}, coupon.ErrExpired
	}
	if subtotal.LessThan(p.MinOrderForCoupon) {
		return Quote{}, &BelowMinOrderError{Min: p.MinOrderForCoupon}
	}

	rawDiscount := subtotal.Mul(c.DiscountPercent).Div(hundred)
	applied := decimal.Min(rawDiscount, p.MaxDiscountCap)

	final := subtotal.Sub(applied)
	if !final.IsPositive() {
		// Clamp instead of rejecting a fully-discounted order.
		final = p.MinCharge
	}

	return Quote{
		FinalAmount:     final.Round(2),
		AppliedDiscount: applied.Round(2),
		DiscountPercent: c.DiscountPercent,
	}, nil
}
