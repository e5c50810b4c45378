// Command seed-db loads development data: the product catalog, a set of test
// coupons, and a default API key.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/coupon"
	"github.com/velora/checkout/internal/domain/product"
	"github.com/velora/checkout/internal/repository"
)

type productJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	ShortDescription string          `json:"shortDescription"`
	LongDescription  string          `json:"longDescription"`
	Dimensions       string          `json:"dimensions"`
	Materials        string          `json:"materials"`
	Category         string          `json:"category"`
	ImageURL         string          `json:"imageUrl"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CHECKOUT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	var entries []productJSON
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(entries)))

	repo := repository.NewProductRepository(pool)
	for _, e := range entries {
		p := &product.Product{
			ID:               e.ID,
			Name:             e.Name,
			Price:            e.Price,
			ShortDescription: e.ShortDescription,
			LongDescription:  e.LongDescription,
			Dimensions:       e.Dimensions,
			Materials:        e.Materials,
			Category:         e.Category,
			ImageURL:         e.ImageURL,
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", e.ID)
		}
		slog.Info("upserted product", slog.String("id", e.ID), slog.String("name", e.Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding test coupons")

	now := time.Now()
	coupons := []*coupon.Coupon{
		{Code: "SAVE10", DiscountPercent: decimal.NewFromInt(10), Active: true, ExpiresAt: now.Add(coupon.DefaultValidity)},
		{Code: "SAVE20", DiscountPercent: decimal.NewFromInt(20), Active: true, ExpiresAt: now.Add(coupon.DefaultValidity)},
		{Code: "WELCOME15", DiscountPercent: decimal.NewFromInt(15), Active: true, ExpiresAt: now.Add(90 * 24 * time.Hour)},
		{Code: "MEGA50", DiscountPercent: decimal.NewFromInt(50), Active: true, ExpiresAt: now.Add(7 * 24 * time.Hour)},
		// For exercising the expired and inactive paths.
		{Code: "BYGONE10", DiscountPercent: decimal.NewFromInt(10), Active: true, ExpiresAt: now.Add(-24 * time.Hour)},
		{Code: "PAUSED25", DiscountPercent: decimal.NewFromInt(25), Active: false, ExpiresAt: now.Add(coupon.DefaultValidity)},
	}

	repo := repository.NewCouponRepository(pool)
	for _, c := range coupons {
		if err := repo.Create(ctx, c); err != nil {
			if errors.Is(err, coupon.ErrConflict) {
				slog.Info("coupon already present", slog.String("code", c.Code))
				continue
			}
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}
		slog.Info("created coupon",
			slog.String("code", c.Code),
			slog.String("discount", c.DiscountPercent.String()),
		)
	}
	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (id, user_id, key_hash, name, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL,
		"default", "seed-user", keyHash, "Default test key",
	); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("user_id", "seed-user"))
	return nil
}
