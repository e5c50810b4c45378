package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/product"
)

type productBody struct {
	ID               string  `json:"id,omitempty"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	ShortDescription string  `json:"shortDescription,omitempty"`
	LongDescription  string  `json:"longDescription,omitempty"`
	Dimensions       string  `json:"dimensions,omitempty"`
	Materials        string  `json:"materials,omitempty"`
	Category         string  `json:"category,omitempty"`
	ImageURL         string  `json:"imageUrl,omitempty"`
}

func viewProduct(p *product.Product) productBody {
	return productBody{
		ID:               p.ID,
		Name:             p.Name,
		Price:            p.Price.InexactFloat64(),
		ShortDescription: p.ShortDescription,
		LongDescription:  p.LongDescription,
		Dimensions:       p.Dimensions,
		Materials:        p.Materials,
		Category:         p.Category,
		ImageURL:         p.ImageURL,
	}
}

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var body productBody
	if !decodeBody(w, r, &body) {
		return
	}

	p := &product.Product{
		ID:               uuid.New().String(),
		Name:             body.Name,
		Price:            decimal.NewFromFloat(body.Price),
		ShortDescription: body.ShortDescription,
		LongDescription:  body.LongDescription,
		Dimensions:       body.Dimensions,
		Materials:        body.Materials,
		Category:         body.Category,
		ImageURL:         body.ImageURL,
	}
	if err := p.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}

	if err := h.products.Create(r.Context(), p); err != nil {
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, map[string]productBody{"product": viewProduct(p)})
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	views := make([]productBody, 0, len(products))
	for i := range products {
		views = append(views, viewProduct(&products[i]))
	}
	respondJSON(w, r, http.StatusOK, map[string][]productBody{"products": views})
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		respondServerError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]productBody{"product": viewProduct(p)})
}
