package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velora/checkout/internal/domain/coupon"
	"github.com/velora/checkout/internal/domain/pricing"
)

// stage names the steps of the checkout saga, logged on every transition.
type stage string

const (
	stageValidating stage = "validating"
	stagePricing    stage = "pricing"
	stageRedeeming  stage = "redeeming"
	stagePersisting stage = "persisting"
	stageCompleted  stage = "completed"
	stageFailed     stage = "failed"
)

// Service orchestrates checkout: validate, price, redeem, persist, and
// compensate with Unredeem when persistence fails after a redemption.
type Service struct {
	coupons coupon.Repository
	intents Repository
	policy  pricing.Policy
	now     func() time.Time
}

// NewService creates the checkout orchestrator.
func NewService(coupons coupon.Repository, intents Repository, policy pricing.Policy) *Service {
	return &Service{
		coupons: coupons,
		intents: intents,
		policy:  policy,
		now:     time.Now,
	}
}

// Checkout runs the full order-placement saga. Domain rule violations come
// back as ValidationErrors before any mutation; only persistence failures
// after a successful redemption trigger compensation.
func (s *Service) Checkout(ctx context.Context, req Request) (*Confirmation, error) {
	lg := zctx.From(ctx).With(zap.String("user_id", req.UserID))
	lg.Debug("Checkout started", zap.String("stage", string(stageValidating)))

	if errs := req.validate(s.policy.MinOrderAmount, s.policy.MaxOrderAmount); len(errs) > 0 {
		return nil, errs
	}

	// A retry carrying the same idempotency key returns the original
	// confirmation without re-running the saga.
	if req.IdempotencyKey != "" {
		existing, err := s.intents.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err == nil {
			lg.Info("Checkout replayed from idempotency key",
				zap.String("order_id", existing.ID))
			return confirmationFrom(existing), nil
		}
		if !errors.Is(err, ErrIntentNotFound) {
			return nil, errors.Wrap(err, "idempotency lookup")
		}
	}

	var (
		code string
		c    *coupon.Coupon
	)
	if req.CouponCode != "" {
		code = coupon.Normalize(req.CouponCode)
		if err := coupon.ValidateCode(code); err != nil {
			return nil, ValidationErrors{{
				Field: "couponCode", Code: CodeInvalidFormat,
				Message: "coupon code must be 3-20 uppercase letters or digits",
			}}
		}

		found, err := s.coupons.FindByCode(ctx, code)
		if err != nil {
			if verrs, ok := couponValidationErrors(err); ok {
				return nil, verrs
			}
			return nil, errors.Wrapf(err, "find coupon %q", code)
		}
		c = found
	}

	lg.Debug("Checkout pricing", zap.String("stage", string(stagePricing)))
	quote, err := s.policy.Compute(req.Amount, c, s.now())
	if err != nil {
		if verrs, ok := pricingValidationErrors(err); ok {
			return nil, verrs
		}
		return nil, errors.Wrap(err, "compute quote")
	}

	// Redeem before persisting. The store's conditional write guarantees a
	// concurrent duplicate loses here, before any intent exists.
	if c != nil {
		lg.Debug("Checkout redeeming coupon",
			zap.String("stage", string(stageRedeeming)), zap.String("coupon", code))
		if err := s.coupons.Redeem(ctx, code, req.UserID); err != nil {
			if verrs, ok := couponValidationErrors(err); ok {
				return nil, verrs
			}
			return nil, errors.Wrapf(err, "redeem coupon %q", code)
		}
	}

	intent := &OrderIntent{
		ID:               uuid.New().String(),
		UserID:           req.UserID,
		IdempotencyKey:   req.IdempotencyKey,
		Email:            normalizeEmail(req.Email),
		PhoneNumber:      strings.TrimSpace(req.PhoneNumber),
		Country:          strings.TrimSpace(req.Country),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Address:          strings.TrimSpace(req.Address),
		ApartmentNo:      strings.TrimSpace(req.ApartmentNo),
		PostalCode:       strings.TrimSpace(req.PostalCode),
		City:             strings.TrimSpace(req.City),
		PaymentMethod:    req.PaymentMethod,
		Status:           StatusPending,
		CouponCode:       code,
		OriginalAmount:   req.Amount.Round(2),
		DiscountedAmount: quote.FinalAmount,
		DiscountPercent:  quote.DiscountPercent,
	}

	lg.Debug("Checkout persisting intent",
		zap.String("stage", string(stagePersisting)), zap.String("order_id", intent.ID))
	if err := s.intents.Create(ctx, intent); err != nil {
		s.compensate(ctx, c, code, req.UserID)

		if errors.Is(err, ErrDuplicateIntent) && req.IdempotencyKey != "" {
			// Lost a race against a concurrent retry; hand back its result.
			existing, findErr := s.intents.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if findErr == nil {
				return confirmationFrom(existing), nil
			}
			return nil, errors.Wrap(err, "create intent")
		}

		lg.Error("Checkout failed at persistence",
			zap.String("stage", string(stageFailed)), zap.Error(err))
		return nil, errors.Wrap(err, "create intent")
	}
	intent.Status = StatusCompleted

	lg.Info("Checkout completed",
		zap.String("stage", string(stageCompleted)),
		zap.String("order_id", intent.ID),
		zap.String("coupon", code),
		zap.String("final_amount", intent.DiscountedAmount.StringFixed(2)))

	return confirmationFrom(intent), nil
}

// compensate undoes a redemption after persistence failed. A compensation
// failure is logged but never changes the error the caller sees.
func (s *Service) compensate(ctx context.Context, c *coupon.Coupon, code, userID string) {
	if c == nil {
		return
	}
	lg := zctx.From(ctx)
	if err := s.coupons.Unredeem(ctx, code, userID); err != nil {
		lg.Error("Coupon redemption rollback failed",
			zap.String("coupon", code),
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	lg.Warn("Coupon redemption rolled back",
		zap.String("coupon", code), zap.String("user_id", userID))
}

// ListOrders returns the user's order history, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]OrderIntent, error) {
	intents, err := s.intents.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list intents")
	}
	return intents, nil
}

// couponValidationErrors maps coupon store failures onto user-facing
// validation errors. Unknown errors pass through untouched.
func couponValidationErrors(err error) (ValidationErrors, bool) {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		return ValidationErrors{{
			Field: "couponCode", Code: CodeCouponNotFound,
			Message: "coupon not found, check the code and try again",
		}}, true
	case errors.Is(err, coupon.ErrInactive):
		return ValidationErrors{{
			Field: "couponCode", Code: CodeCouponInactive,
			Message: "this coupon is no longer active",
		}}, true
	case errors.Is(err, coupon.ErrExpired):
		return ValidationErrors{{
			Field: "couponCode", Code: CodeCouponExpired,
			Message: "this coupon has expired",
		}}, true
	case errors.Is(err, coupon.ErrAlreadyRedeemed):
		return ValidationErrors{{
			Field: "couponCode", Code: CodeCouponAlreadyUsed,
			Message: "you have already used this coupon",
		}}, true
	}
	return nil, false
}

func pricingValidationErrors(err error) (ValidationErrors, bool) {
	var minErr *pricing.BelowMinOrderError
	switch {
	case errors.As(err, &minErr):
		return ValidationErrors{{
			Field: "amount", Code: CodeMinOrderAmount,
			Message: minErr.Error(),
		}}, true
	case errors.Is(err, pricing.ErrAmountOutOfRange):
		return ValidationErrors{{
			Field: "amount", Code: CodeAmountOutOfRange,
			Message: "order amount out of range",
		}}, true
	}
	return couponValidationErrors(err)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
