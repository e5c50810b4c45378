package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velora/checkout/internal/domain/auth"
	"github.com/velora/checkout/internal/domain/cart"
	"github.com/velora/checkout/internal/domain/checkout"
	"github.com/velora/checkout/internal/domain/contact"
	"github.com/velora/checkout/internal/domain/coupon"
	"github.com/velora/checkout/internal/domain/pricing"
	"github.com/velora/checkout/internal/domain/product"
)

const (
	testPepper = "test-pepper"
	testAPIKey = "sk-test-key"
	testUserID = "user-1"
)

type memCouponRepo struct {
	mu       sync.Mutex
	coupons  map[string]*coupon.Coupon
	redeemed map[string]map[string]bool
}

func newMemCouponRepo(cs ...*coupon.Coupon) *memCouponRepo {
	r := &memCouponRepo{
		coupons:  make(map[string]*coupon.Coupon),
		redeemed: make(map[string]map[string]bool),
	}
	for _, c := range cs {
		r.coupons[c.Code] = c
	}
	return r
}

func (r *memCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[coupon.Normalize(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.coupons[c.Code]; ok {
		return coupon.ErrConflict
	}
	r.coupons[c.Code] = c
	return nil
}

func (r *memCouponRepo) Redeem(_ context.Context, code, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return coupon.ErrNotFound
	}
	if !c.Active {
		return coupon.ErrInactive
	}
	if c.Expired(time.Now()) {
		return coupon.ErrExpired
	}
	if r.redeemed[code] == nil {
		r.redeemed[code] = make(map[string]bool)
	}
	if r.redeemed[code][userID] {
		return coupon.ErrAlreadyRedeemed
	}
	r.redeemed[code][userID] = true
	return nil
}

func (r *memCouponRepo) Unredeem(_ context.Context, code, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.redeemed[code], userID)
	return nil
}

func (r *memCouponRepo) Redeemed(_ context.Context, code, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redeemed[coupon.Normalize(code)][userID], nil
}

type memIntentRepo struct {
	mu      sync.Mutex
	intents []*checkout.OrderIntent
}

func (r *memIntentRepo) Create(_ context.Context, intent *checkout.OrderIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if intent.IdempotencyKey != "" {
		for _, o := range r.intents {
			if o.UserID == intent.UserID && o.IdempotencyKey == intent.IdempotencyKey {
				return checkout.ErrDuplicateIntent
			}
		}
	}
	cp := *intent
	cp.Status = checkout.StatusCompleted
	cp.CreatedAt = time.Now()
	r.intents = append(r.intents, &cp)
	intent.Status = checkout.StatusCompleted
	return nil
}

func (r *memIntentRepo) FindByIdempotencyKey(_ context.Context, userID, key string) (*checkout.OrderIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.intents {
		if o.UserID == userID && o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, checkout.ErrIntentNotFound
}

func (r *memIntentRepo) ListByUser(_ context.Context, userID string) ([]checkout.OrderIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []checkout.OrderIntent
	for i := len(r.intents) - 1; i >= 0; i-- {
		if r.intents[i].UserID == userID {
			out = append(out, *r.intents[i])
		}
	}
	return out, nil
}

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]*product.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[string]*product.Product)}
}

func (r *memProductRepo) Create(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type memCartRepo struct {
	mu       sync.Mutex
	items    map[string]map[string]int // userID -> productID -> qty
	products *memProductRepo
}

func newMemCartRepo(products *memProductRepo) *memCartRepo {
	return &memCartRepo{items: make(map[string]map[string]int), products: products}
}

func (r *memCartRepo) AddItem(_ context.Context, userID string, item cart.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[userID] == nil {
		r.items[userID] = make(map[string]int)
	}
	r.items[userID][item.ProductID] += item.Quantity
	return nil
}

func (r *memCartRepo) Items(ctx context.Context, userID string) ([]cart.Line, error) {
	r.mu.Lock()
	byProduct := r.items[userID]
	r.mu.Unlock()
	if len(byProduct) == 0 {
		return nil, cart.ErrEmpty
	}
	var lines []cart.Line
	for id, qty := range byProduct {
		p, err := r.products.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		lines = append(lines, cart.Line{Product: *p, Quantity: qty})
	}
	return lines, nil
}

func (r *memCartRepo) RemoveItem(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items[userID], productID)
	return nil
}

func (r *memCartRepo) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, userID)
	return nil
}

type memContactRepo struct {
	mu       sync.Mutex
	messages []*contact.Message
}

func (r *memContactRepo) Create(_ context.Context, m *contact.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

type memAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (r *memAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := r.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	cp := *info
	return &cp, nil
}

type fixture struct {
	handler  *Handler
	server   http.Handler
	coupons  *memCouponRepo
	intents  *memIntentRepo
	products *memProductRepo
}

func newFixture(t *testing.T, cs ...*coupon.Coupon) *fixture {
	t.Helper()

	coupons := newMemCouponRepo(cs...)
	intents := &memIntentRepo{}
	products := newMemProductRepo()
	carts := newMemCartRepo(products)
	contacts := &memContactRepo{}

	svc := checkout.NewService(coupons, intents, pricing.DefaultPolicy())

	h := New(coupons, svc, products, carts, contacts, &memAPIKeyRepo{}, []byte(testPepper))
	keys := &memAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		h.hashKey(testAPIKey): {ID: "key-1", UserID: testUserID, KeyHash: h.hashKey(testAPIKey), Name: "test"},
	}}
	h.apikeys = keys

	return &fixture{handler: h, server: h.Routes(), coupons: coupons, intents: intents, products: products}
}

func (f *fixture) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("api_key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func activeCoupon(code string, discount int64) *coupon.Coupon {
	return &coupon.Coupon{
		Code:            code,
		DiscountPercent: decimal.NewFromInt(discount),
		Active:          true,
		ExpiresAt:       time.Now().Add(24 * time.Hour),
	}
}

func validCheckoutBody() map[string]any {
	return map[string]any{
		"email":         "buyer@example.com",
		"phoneNumber":   "5550001234",
		"country":       "DE",
		"firstName":     "Ada",
		"lastName":      "Lovelace",
		"address":       "12 Analytical Way",
		"postalCode":    "10115",
		"city":          "Berlin",
		"paymentMethod": "COD",
		"amount":        100.0,
	}
}

func TestRequireAPIKey(t *testing.T) {
	f := newFixture(t)

	t.Run("missing key", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/orders", nil, false)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("api_key", "not-a-key")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/orders", nil, true)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCreateCoupon(t *testing.T) {
	f := newFixture(t)

	t.Run("created with defaults", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/coupons", map[string]any{
			"code": "save10", "discount": 10,
		}, false)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Coupon couponView `json:"coupon"`
		}
		decodeInto(t, rec, &resp)
		require.Equal(t, "SAVE10", resp.Coupon.Code)
		require.Equal(t, 10.0, resp.Coupon.Discount)
		require.True(t, resp.Coupon.IsActive)
		require.True(t, resp.Coupon.ExpiryDate.After(time.Now().Add(29*24*time.Hour)))
	})

	t.Run("duplicate code conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/coupons", map[string]any{
			"code": "SAVE10", "discount": 20,
		}, false)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid fields reported together", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/coupons", map[string]any{
			"code": "x!", "discount": 150,
		}, false)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorBody
		decodeInto(t, rec, &resp)
		require.Equal(t, "validation_failed", resp.Code)
		require.Len(t, resp.Errors, 2)
	})

	t.Run("past expiry rejected", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		rec := f.do(t, http.MethodPost, "/coupons", map[string]any{
			"code": "LATE20", "discount": 20, "expiryDate": past,
		}, false)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetCoupon(t *testing.T) {
	expired := activeCoupon("OLD15", 15)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	inactive := activeCoupon("OFF20", 20)
	inactive.Active = false

	f := newFixture(t, activeCoupon("SAVE10", 10), expired, inactive)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"valid", "/coupons/SAVE10", http.StatusOK, ""},
		{"lowercase accepted", "/coupons/save10", http.StatusOK, ""},
		{"bad format", "/coupons/x!", http.StatusBadRequest, "coupon_invalid_format"},
		{"unknown", "/coupons/NOPE99", http.StatusNotFound, "coupon_not_found"},
		{"expired", "/coupons/OLD15", http.StatusBadRequest, "coupon_expired"},
		{"inactive", "/coupons/OFF20", http.StatusBadRequest, "coupon_inactive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, nil, false)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				var resp errorBody
				decodeInto(t, rec, &resp)
				require.Equal(t, tt.wantErr, resp.Code)
			}
		})
	}

	t.Run("already redeemed for authenticated user", func(t *testing.T) {
		require.NoError(t, f.coupons.Redeem(context.Background(), "SAVE10", testUserID))

		rec := f.do(t, http.MethodGet, "/coupons/SAVE10", nil, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorBody
		decodeInto(t, rec, &resp)
		require.Equal(t, "coupon_already_used", resp.Code)

		// The same lookup without credentials still succeeds.
		rec = f.do(t, http.MethodGet, "/coupons/SAVE10", nil, false)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCheckout(t *testing.T) {
	t.Run("without coupon", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/paymentdetail", validCheckoutBody(), true)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Payment paymentView `json:"payment"`
		}
		decodeInto(t, rec, &resp)
		require.NotEmpty(t, resp.Payment.ID)
		require.Equal(t, 100.0, resp.Payment.OriginalAmount)
		require.Equal(t, 100.0, resp.Payment.FinalAmount)
		require.Equal(t, "completed", resp.Payment.PaymentStatus)
		require.Empty(t, resp.Payment.CouponCode)
	})

	t.Run("with coupon", func(t *testing.T) {
		f := newFixture(t, activeCoupon("SAVE10", 10))
		body := validCheckoutBody()
		body["couponCode"] = "save10"

		rec := f.do(t, http.MethodPost, "/paymentdetail", body, true)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Payment paymentView `json:"payment"`
		}
		decodeInto(t, rec, &resp)
		require.Equal(t, 100.0, resp.Payment.OriginalAmount)
		require.Equal(t, 90.0, resp.Payment.FinalAmount)
		require.Equal(t, 10.0, resp.Payment.Discount)
		require.Equal(t, "SAVE10", resp.Payment.CouponCode)
	})

	t.Run("validation failure lists field codes", func(t *testing.T) {
		f := newFixture(t)
		body := validCheckoutBody()
		body["email"] = "not-an-email"
		body["paymentMethod"] = "BARTER"

		rec := f.do(t, http.MethodPost, "/paymentdetail", body, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorBody
		decodeInto(t, rec, &resp)
		require.Equal(t, "validation_failed", resp.Code)

		fields := make(map[string]string)
		for _, fe := range resp.Errors {
			fields[fe.Field] = fe.Code
		}
		require.Equal(t, checkout.CodeInvalidFormat, fields["email"])
		require.Equal(t, checkout.CodeInvalidPaymentMethod, fields["paymentMethod"])
	})

	t.Run("coupon reuse rejected", func(t *testing.T) {
		f := newFixture(t, activeCoupon("SAVE10", 10))
		body := validCheckoutBody()
		body["couponCode"] = "SAVE10"

		rec := f.do(t, http.MethodPost, "/paymentdetail", body, true)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = f.do(t, http.MethodPost, "/paymentdetail", body, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorBody
		decodeInto(t, rec, &resp)
		require.Len(t, resp.Errors, 1)
		require.Equal(t, checkout.CodeCouponAlreadyUsed, resp.Errors[0].Code)
	})

	t.Run("idempotency key replays confirmation", func(t *testing.T) {
		f := newFixture(t)

		send := func() paymentView {
			var buf bytes.Buffer
			require.NoError(t, json.NewEncoder(&buf).Encode(validCheckoutBody()))
			req := httptest.NewRequest(http.MethodPost, "/paymentdetail", &buf)
			req.Header.Set("api_key", testAPIKey)
			req.Header.Set("Idempotency-Key", "attempt-1")
			rec := httptest.NewRecorder()
			f.server.ServeHTTP(rec, req)
			require.Equal(t, http.StatusCreated, rec.Code)

			var resp struct {
				Payment paymentView `json:"payment"`
			}
			decodeInto(t, rec, &resp)
			return resp.Payment
		}

		first := send()
		second := send()
		require.Equal(t, first.ID, second.ID)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/paymentdetail", bytes.NewBufferString("{"))
		req.Header.Set("api_key", testAPIKey)
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/paymentdetail", validCheckoutBody(), true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Orders []orderView `json:"orders"`
	}
	decodeInto(t, rec, &resp)
	require.Len(t, resp.Orders, 1)
	require.Equal(t, 100.0, resp.Orders[0].OriginalAmount)
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/products", map[string]any{
		"name": "Oak Desk", "price": 249.99, "category": "furniture",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Product productBody `json:"product"`
	}
	decodeInto(t, rec, &created)
	require.NotEmpty(t, created.Product.ID)

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/products", nil, false)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Products []productBody `json:"products"`
		}
		decodeInto(t, rec, &resp)
		require.Len(t, resp.Products, 1)
	})

	t.Run("get by id", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/products/"+created.Product.ID, nil, false)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/products/nope", nil, false)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("nameless product rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/products", map[string]any{"price": 1.0}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCart(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/products", map[string]any{
		"name": "Oak Desk", "price": 249.99,
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Product productBody `json:"product"`
	}
	decodeInto(t, rec, &created)

	t.Run("empty cart", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/cart", nil, true)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Items []cartLineView `json:"items"`
		}
		decodeInto(t, rec, &resp)
		require.Empty(t, resp.Items)
	})

	t.Run("add merges quantities", func(t *testing.T) {
		for range 2 {
			rec := f.do(t, http.MethodPost, "/cart", map[string]any{
				"productId": created.Product.ID, "quantity": 1,
			}, true)
			require.Equal(t, http.StatusNoContent, rec.Code)
		}

		rec := f.do(t, http.MethodGet, "/cart", nil, true)
		var resp struct {
			Items []cartLineView `json:"items"`
		}
		decodeInto(t, rec, &resp)
		require.Len(t, resp.Items, 1)
		require.Equal(t, 2, resp.Items[0].Quantity)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/cart", map[string]any{
			"productId": created.Product.ID, "quantity": 0,
		}, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("remove", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/cart/items/"+created.Product.ID, nil, true)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, http.MethodGet, "/cart", nil, true)
		var resp struct {
			Items []cartLineView `json:"items"`
		}
		decodeInto(t, rec, &resp)
		require.Empty(t, resp.Items)
	})

	t.Run("clear", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/cart", map[string]any{
			"productId": created.Product.ID, "quantity": 3,
		}, true)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, http.MethodDelete, "/cart", nil, true)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, http.MethodGet, "/cart", nil, true)
		var resp struct {
			Items []cartLineView `json:"items"`
		}
		decodeInto(t, rec, &resp)
		require.Empty(t, resp.Items)
	})
}

func TestContact(t *testing.T) {
	f := newFixture(t)

	t.Run("created", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/contact", map[string]any{
			"name": "Ada", "surname": "Lovelace", "email": "ada@example.com",
			"telephone": "5550001234", "message": "When does the desk restock?",
		}, false)
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/contact", map[string]any{"name": "Ada"}, false)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
