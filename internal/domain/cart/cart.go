// Package cart models the per-user shopping cart.
//
// A user owns at most one cart; adding an existing product merges quantities
// instead of duplicating lines.
package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/velora/checkout/internal/domain/product"
)

var (
	// ErrEmpty is returned when a user has no cart items.
	ErrEmpty = errors.New("cart is empty")
	// ErrBadQuantity is returned for non-positive quantities.
	ErrBadQuantity = errors.New("quantity must be greater than 0")
)

// Item is one cart line.
type Item struct {
	ProductID string
	Quantity  int
}

// Line is a cart item joined with its product for display.
type Line struct {
	Product  product.Product
	Quantity int
}

// Repository is the persistent cart store.
type Repository interface {
	// AddItem inserts the item or, when the product is already in the cart,
	// increments its quantity by item.Quantity in a single statement.
	AddItem(ctx context.Context, userID string, item Item) error

	// Items returns the user's cart lines with product details.
	// Returns ErrEmpty when the cart has no items.
	Items(ctx context.Context, userID string) ([]Line, error)

	// RemoveItem deletes the product from the user's cart. Removing an absent
	// product is not an error.
	RemoveItem(ctx context.Context, userID, productID string) error

	// Clear deletes every item in the user's cart.
	Clear(ctx context.Context, userID string) error
}
