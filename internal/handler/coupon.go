package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/checkout"
	"github.com/velora/checkout/internal/domain/coupon"
)

type createCouponRequest struct {
	Code       string     `json:"code"`
	Discount   float64    `json:"discount"`
	IsActive   *bool      `json:"isActive"`
	ExpiryDate *time.Time `json:"expiryDate"`
}

type couponView struct {
	Code       string    `json:"code"`
	Discount   float64   `json:"discount"`
	IsActive   bool      `json:"isActive"`
	ExpiryDate time.Time `json:"expiryDate"`
}

func viewCoupon(c *coupon.Coupon) couponView {
	return couponView{
		Code:       c.Code,
		Discount:   c.DiscountPercent.InexactFloat64(),
		IsActive:   c.Active,
		ExpiryDate: c.ExpiresAt,
	}
}

// CreateCoupon handles POST /coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var verrs checkout.ValidationErrors
	code := coupon.Normalize(req.Code)
	if code == "" {
		verrs = append(verrs, checkout.FieldError{
			Field: "code", Code: checkout.CodeRequired, Message: "coupon code is required",
		})
	} else if err := coupon.ValidateCode(code); err != nil {
		verrs = append(verrs, checkout.FieldError{
			Field: "code", Code: checkout.CodeInvalidFormat,
			Message: "coupon code must be 3-20 uppercase letters or digits",
		})
	}
	if req.Discount < 1 || req.Discount > 100 {
		verrs = append(verrs, checkout.FieldError{
			Field: "discount", Code: checkout.CodeAmountOutOfRange,
			Message: "discount must be between 1 and 100",
		})
	}
	now := time.Now()
	expiresAt := now.Add(coupon.DefaultValidity)
	if req.ExpiryDate != nil {
		if !req.ExpiryDate.After(now) {
			verrs = append(verrs, checkout.FieldError{
				Field: "expiryDate", Code: checkout.CodeInvalidFormat,
				Message: "expiry date must be in the future",
			})
		}
		expiresAt = *req.ExpiryDate
	}
	if len(verrs) > 0 {
		respondValidation(w, r, verrs)
		return
	}

	c := &coupon.Coupon{
		Code:            code,
		DiscountPercent: decimal.NewFromFloat(req.Discount),
		Active:          true,
		ExpiresAt:       expiresAt,
	}
	if req.IsActive != nil {
		c.Active = *req.IsActive
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		if errors.Is(err, coupon.ErrConflict) {
			respondError(w, r, http.StatusConflict, "coupon_exists", "a coupon with this code already exists")
			return
		}
		respondServerError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, map[string]couponView{"coupon": viewCoupon(c)})
}

// GetCoupon handles GET /coupons/{code}. It validates the coupon for use:
// format, existence, active flag, expiry, and, when the caller presents an
// API key, whether that user has already redeemed it.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	code := coupon.Normalize(chi.URLParam(r, "code"))
	if err := coupon.ValidateCode(code); err != nil {
		respondError(w, r, http.StatusBadRequest, "coupon_invalid_format",
			"coupon code must be 3-20 uppercase letters or digits")
		return
	}

	c, err := h.coupons.FindByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "coupon_not_found", "coupon not found")
			return
		}
		respondServerError(w, r, err)
		return
	}
	if !c.Active {
		respondError(w, r, http.StatusBadRequest, "coupon_inactive", "coupon is not active")
		return
	}
	if c.Expired(time.Now()) {
		respondError(w, r, http.StatusBadRequest, "coupon_expired", "coupon has expired")
		return
	}

	// Redemption is per user, so the check only applies when the caller
	// authenticates. Anonymous lookups skip it.
	if userID, authErr := h.resolveUser(r); authErr == nil {
		redeemed, err := h.coupons.Redeemed(r.Context(), code, userID)
		if err != nil {
			respondServerError(w, r, err)
			return
		}
		if redeemed {
			respondError(w, r, http.StatusBadRequest, "coupon_already_used",
				"you have already used this coupon")
			return
		}
	}

	respondJSON(w, r, http.StatusOK, map[string]couponView{"coupon": viewCoupon(c)})
}
