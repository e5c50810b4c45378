package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/product"
)

const (
	createProductSQL = `INSERT INTO products (
		id, name, price, short_description, long_description,
		dimensions, materials, category, image_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	upsertProductSQL = createProductSQL + `
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, price = EXCLUDED.price,
		short_description = EXCLUDED.short_description,
		long_description = EXCLUDED.long_description,
		dimensions = EXCLUDED.dimensions, materials = EXCLUDED.materials,
		category = EXCLUDED.category, image_url = EXCLUDED.image_url`

	selectProductCols = `SELECT id, name, price, short_description, long_description,
		dimensions, materials, category, image_url FROM products`

	listProductsSQL   = selectProductCols + ` ORDER BY name`
	getProductSQL     = selectProductCols + ` WHERE id = $1`
	getProductsInSQL  = selectProductCols + ` WHERE id = ANY($1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Price, p.ShortDescription, p.LongDescription,
		p.Dimensions, p.Materials, p.Category, p.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts the product or refreshes an existing row. Used by seeding.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Price, p.ShortDescription, p.LongDescription,
		p.Dimensions, p.Materials, p.Category, p.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsInSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products batch: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products batch: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.ShortDescription, &p.LongDescription,
		&p.Dimensions, &p.Materials, &p.Category, &p.ImageURL)
	return p, err
}
