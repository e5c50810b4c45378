package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/velora/checkout/internal/domain/cart"
)

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartLineView struct {
	Product  productBody `json:"product"`
	Quantity int         `json:"quantity"`
}

// AddCartItem handles POST /cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	var body addCartItemRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProductID == "" {
		respondError(w, r, http.StatusBadRequest, "product_required", "productId is required")
		return
	}
	if body.Quantity <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_quantity", cart.ErrBadQuantity.Error())
		return
	}

	err := h.carts.AddItem(r.Context(), userID, cart.Item{
		ProductID: body.ProductID,
		Quantity:  body.Quantity,
	})
	if err != nil {
		respondServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCart handles GET /cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	lines, err := h.carts.Items(r.Context(), userID)
	if err != nil {
		if errors.Is(err, cart.ErrEmpty) {
			respondJSON(w, r, http.StatusOK, map[string][]cartLineView{"items": {}})
			return
		}
		respondServerError(w, r, err)
		return
	}

	views := make([]cartLineView, 0, len(lines))
	for i := range lines {
		views = append(views, cartLineView{
			Product:  viewProduct(&lines[i].Product),
			Quantity: lines[i].Quantity,
		})
	}
	respondJSON(w, r, http.StatusOK, map[string][]cartLineView{"items": views})
}

// ClearCart handles DELETE /cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		respondServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveCartItem handles DELETE /cart/items/{productID}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	if err := h.carts.RemoveItem(r.Context(), userID, chi.URLParam(r, "productID")); err != nil {
		respondServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
