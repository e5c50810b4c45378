// Package handler exposes the checkout service over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velora/checkout/internal/domain/auth"
	"github.com/velora/checkout/internal/domain/cart"
	"github.com/velora/checkout/internal/domain/checkout"
	"github.com/velora/checkout/internal/domain/contact"
	"github.com/velora/checkout/internal/domain/coupon"
	"github.com/velora/checkout/internal/domain/product"
)

// Handler holds the domain dependencies behind the HTTP routes.
type Handler struct {
	coupons  coupon.Repository
	checkout *checkout.Service
	products product.Repository
	carts    cart.Repository
	contacts contact.Repository
	apikeys  auth.Repository
	pepper   []byte
}

// New constructs a Handler with the required domain dependencies. pepper is
// the HMAC key applied to API keys before lookup.
func New(
	coupons coupon.Repository,
	checkoutSvc *checkout.Service,
	products product.Repository,
	carts cart.Repository,
	contacts contact.Repository,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		coupons:  coupons,
		checkout: checkoutSvc,
		products: products,
		carts:    carts,
		contacts: contacts,
		apikeys:  apikeys,
		pepper:   pepper,
	}
}

// Routes mounts every API route on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Public surface.
	r.Post("/coupons", h.CreateCoupon)
	r.Get("/coupons/{code}", h.GetCoupon)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Post("/contact", h.CreateContactMessage)

	// Authenticated surface. The checkout flow only ever sees the user ID
	// resolved by RequireAPIKey.
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAPIKey)

		r.Post("/paymentdetail", h.Checkout)
		r.Get("/orders", h.ListOrders)
		r.Post("/products", h.CreateProduct)
		r.Post("/cart", h.AddCartItem)
		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Delete("/cart/items/{productID}", h.RemoveCartItem)
	})

	return r
}
