package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/checkout"
)

type checkoutRequest struct {
	Email         string  `json:"email"`
	PhoneNumber   string  `json:"phoneNumber"`
	Country       string  `json:"country"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Address       string  `json:"address"`
	ApartmentNo   string  `json:"apartmentNo"`
	PostalCode    string  `json:"postalCode"`
	City          string  `json:"city"`
	PaymentMethod string  `json:"paymentMethod"`
	Amount        float64 `json:"amount"`
	CouponCode    string  `json:"couponCode"`
}

// paymentView mirrors the storefront's confirmation shape.
type paymentView struct {
	ID             string  `json:"id"`
	OriginalAmount float64 `json:"originalAmount"`
	FinalAmount    float64 `json:"finalAmount"`
	Discount       float64 `json:"discount"`
	PaymentMethod  string  `json:"paymentMethod"`
	PaymentStatus  string  `json:"paymentStatus"`
	CouponCode     string  `json:"couponCode,omitempty"`
}

// Checkout handles POST /paymentdetail.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
		return
	}

	var body checkoutRequest
	if !decodeBody(w, r, &body) {
		return
	}

	conf, err := h.checkout.Checkout(r.Context(), checkout.Request{
		UserID:         userID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Email:          body.Email,
		PhoneNumber:    body.PhoneNumber,
		Country:        body.Country,
		FirstName:      body.FirstName,
		LastName:       body.LastName,
		Address:        body.Address,
		ApartmentNo:    body.ApartmentNo,
		PostalCode:     body.PostalCode,
		City:           body.City,
		PaymentMethod:  checkout.PaymentMethod(body.PaymentMethod),
		Amount:         decimal.NewFromFloat(body.Amount),
		CouponCode:     body.CouponCode,
	})
	if err != nil {
		var verrs checkout.ValidationErrors
		if errors.As(err, &verrs) {
			respondValidation(w, r, verrs)
			return
		}
		if errors.Is(err, checkout.ErrDuplicateIntent) {
			respondError(w, r, http.StatusConflict, "duplicate_order",
				"an order with this idempotency key already exists")
			return
		}
		respondServerError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, map[string]paymentView{"payment": {
		ID:             conf.OrderID,
		OriginalAmount: conf.OriginalAmount.InexactFloat64(),
		FinalAmount:    conf.FinalAmount.InexactFloat64(),
		Discount:       conf.DiscountPercent.InexactFloat64(),
		PaymentMethod:  string(conf.PaymentMethod),
		PaymentStatus:  string(conf.Status),
		CouponCode:     conf.CouponCode,
	}})
}

type orderView struct {
	ID             string    `json:"id"`
	OriginalAmount float64   `json:"originalAmount"`
	FinalAmount    float64   `json:"finalAmount"`
	Discount       float64   `json:"discount"`
	PaymentMethod  string    `json:"paymentMethod"`
	PaymentStatus  string    `json:"paymentStatus"`
	CouponCode     string    `json:"couponCode,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ListOrders handles GET /orders for the authenticated user.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
		return
	}

	intents, err := h.checkout.ListOrders(r.Context(), userID)
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	orders := make([]orderView, 0, len(intents))
	for i := range intents {
		o := &intents[i]
		orders = append(orders, orderView{
			ID:             o.ID,
			OriginalAmount: o.OriginalAmount.InexactFloat64(),
			FinalAmount:    o.DiscountedAmount.InexactFloat64(),
			Discount:       o.DiscountPercent.InexactFloat64(),
			PaymentMethod:  string(o.PaymentMethod),
			PaymentStatus:  string(o.Status),
			CouponCode:     o.CouponCode,
			CreatedAt:      o.CreatedAt,
		})
	}
	respondJSON(w, r, http.StatusOK, map[string][]orderView{"orders": orders})
}
