package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/cart"
	"github.com/velora/checkout/internal/domain/product"
)

const (
	// Upsert merges quantities so a cart never holds duplicate lines for
	// one product.
	addCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	cartItemsSQL = `SELECT p.id, p.name, p.price, p.short_description, p.long_description,
		p.dimensions, p.materials, p.category, p.image_url, ci.quantity
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.user_id = $1
	ORDER BY ci.added_at`

	removeCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
	clearCartSQL      = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) AddItem(ctx context.Context, userID string, item cart.Item) error {
	if item.Quantity <= 0 {
		return cart.ErrBadQuantity
	}
	_, err := r.pool.Exec(ctx, addCartItemSQL, userID, item.ProductID, item.Quantity)
	if err != nil {
		return fmt.Errorf("adding cart item %q: %w", item.ProductID, err)
	}
	return nil
}

func (r *CartRepository) Items(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, cartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for %q: %w", userID, err)
	}

	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("loading cart for %q: %w", userID, err)
	}
	if len(lines) == 0 {
		return nil, cart.ErrEmpty
	}
	return lines, nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	_, err := r.pool.Exec(ctx, removeCartItemSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("removing cart item %q: %w", productID, err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l cart.Line
		p product.Product
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.ShortDescription, &p.LongDescription,
		&p.Dimensions, &p.Materials, &p.Category, &p.ImageURL, &l.Quantity)
	l.Product = p
	return l, err
}
