// Package checkout implements the order-placement workflow: request
// validation, pricing, coupon redemption, and order-intent persistence with
// compensation on failure.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates the accepted payment methods.
type PaymentMethod string

const (
	MethodCashOnDelivery PaymentMethod = "COD"
	MethodUPI            PaymentMethod = "UPI"
	MethodCreditCard     PaymentMethod = "CreditCard"
)

// Valid reports whether m is one of the enumerated payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCashOnDelivery, MethodUPI, MethodCreditCard:
		return true
	}
	return false
}

// Status is the lifecycle state of an order intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// OrderIntent is the persisted record of a checkout attempt and its computed
// pricing. It records payment intent, not settlement.
type OrderIntent struct {
	ID             string
	UserID         string
	IdempotencyKey string

	Email       string
	PhoneNumber string
	Country     string
	FirstName   string
	LastName    string
	Address     string
	ApartmentNo string
	PostalCode  string
	City        string

	PaymentMethod    PaymentMethod
	Status           Status
	CouponCode       string
	OriginalAmount   decimal.Decimal
	DiscountedAmount decimal.Decimal
	DiscountPercent  decimal.Decimal
	CreatedAt        time.Time
}

var (
	// ErrIntentNotFound is returned by lookups that match no intent.
	ErrIntentNotFound = errors.New("order intent not found")
	// ErrDuplicateIntent is returned when an insert collides with an existing
	// (user, idempotency key) pair.
	ErrDuplicateIntent = errors.New("duplicate order intent")
)

// Repository is the persistent order-intent store.
type Repository interface {
	// Create persists the intent with StatusPending and flips it to
	// StatusCompleted within the same transaction. Returns ErrDuplicateIntent
	// when the intent's (user, idempotency key) pair already exists.
	Create(ctx context.Context, intent *OrderIntent) error

	// FindByIdempotencyKey returns the intent previously created by the user
	// under the given key, or ErrIntentNotFound.
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*OrderIntent, error)

	// ListByUser returns the user's intents, newest first.
	ListByUser(ctx context.Context, userID string) ([]OrderIntent, error)
}

// Confirmation is returned to the caller after a successful checkout.
type Confirmation struct {
	OrderID         string
	OriginalAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
	DiscountPercent decimal.Decimal
	CouponCode      string
	PaymentMethod   PaymentMethod
	Status          Status
}

func confirmationFrom(intent *OrderIntent) *Confirmation {
	return &Confirmation{
		OrderID:         intent.ID,
		OriginalAmount:  intent.OriginalAmount,
		FinalAmount:     intent.DiscountedAmount,
		DiscountPercent: intent.DiscountPercent,
		CouponCode:      intent.CouponCode,
		PaymentMethod:   intent.PaymentMethod,
		Status:          intent.Status,
	}
}
