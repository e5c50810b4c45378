// Package product defines the catalog entity and its store contract.
package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a single catalog entry.
type Product struct {
	ID               string
	Name             string
	Price            decimal.Decimal
	ShortDescription string
	LongDescription  string
	Dimensions       string
	Materials        string
	Category         string
	ImageURL         string
}

// Validate checks the fields required to list a product.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is required")
	}
	if p.Price.IsNegative() {
		return errors.New("product price must not be negative")
	}
	return nil
}

// Repository is the persistent product store.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs fetches a batch in one query; missing IDs are simply absent
	// from the result.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
