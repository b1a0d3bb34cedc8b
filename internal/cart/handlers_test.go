package cart_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/cart"
	"github.com/chilisaus/storefront-api/internal/catalog"
	"github.com/chilisaus/storefront-api/internal/pricing"
)

type memoryStore struct {
	carts map[uuid.UUID]cart.Cart
	items map[uuid.UUID]cart.Item

	products map[uuid.UUID]catalog.Product
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		carts:    map[uuid.UUID]cart.Cart{},
		items:    map[uuid.UUID]cart.Item{},
		products: map[uuid.UUID]catalog.Product{},
	}
}

func (m *memoryStore) CreateCart(_ context.Context, anonID string, expiresAt time.Time) (cart.Cart, error) {
	c := cart.Cart{ID: uuid.New(), AnonID: anonID, CreatedAt: time.Now(), UpdatedAt: time.Now(), ExpiresAt: expiresAt}
	m.carts[c.ID] = c
	return c, nil
}

func (m *memoryStore) GetCart(_ context.Context, id uuid.UUID) (cart.Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return cart.Cart{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memoryStore) GetCartByAnonID(_ context.Context, anonID string) (cart.Cart, error) {
	for _, c := range m.carts {
		if c.AnonID == anonID {
			return c, nil
		}
	}
	return cart.Cart{}, pgx.ErrNoRows
}

func (m *memoryStore) TouchCart(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	c, ok := m.carts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.ExpiresAt = expiresAt
	m.carts[id] = c
	return nil
}

func (m *memoryStore) SetVoucher(_ context.Context, id uuid.UUID, code *string) error {
	c, ok := m.carts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.AppliedVoucherCode = code
	m.carts[id] = c
	return nil
}

func (m *memoryStore) ListItems(_ context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	var items []cart.Item
	for _, it := range m.items {
		if it.CartID == cartID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (m *memoryStore) ListItemsForQuote(ctx context.Context, cartID uuid.UUID) ([]cart.QuoteItem, error) {
	items, _ := m.ListItems(ctx, cartID)
	out := make([]cart.QuoteItem, 0, len(items))
	for _, it := range items {
		p := m.products[it.ProductID]
		out = append(out, cart.QuoteItem{Item: it, Category: p.Category, CapacityMl: p.CapacityMl, WeightGrams: p.WeightGrams})
	}
	return out, nil
}

func (m *memoryStore) FindItem(_ context.Context, cartID, productID uuid.UUID, size *string) (cart.Item, error) {
	for _, it := range m.items {
		if it.CartID == cartID && it.ProductID == productID && equalPtr(it.SelectedSize, size) {
			return it, nil
		}
	}
	return cart.Item{}, pgx.ErrNoRows
}

func (m *memoryStore) GetItem(_ context.Context, itemID uuid.UUID) (cart.Item, error) {
	it, ok := m.items[itemID]
	if !ok {
		return cart.Item{}, pgx.ErrNoRows
	}
	return it, nil
}

func (m *memoryStore) InsertItem(_ context.Context, it cart.Item) (cart.Item, error) {
	it.ID = uuid.New()
	m.items[it.ID] = it
	return it, nil
}

func (m *memoryStore) UpdateItemQty(_ context.Context, itemID uuid.UUID, qty int, subtotal int64) error {
	it, ok := m.items[itemID]
	if !ok {
		return pgx.ErrNoRows
	}
	it.Qty = qty
	it.SubtotalCents = subtotal
	m.items[itemID] = it
	return nil
}

func (m *memoryStore) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	if it, ok := m.items[itemID]; ok && it.CartID == cartID {
		delete(m.items, itemID)
	}
	return nil
}

func (m *memoryStore) GetProductByID(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type flatVoucher struct {
	code     string
	discount int64
}

func (v flatVoucher) Evaluate(_ context.Context, code string, _ int64) (int64, error) {
	if !strings.EqualFold(code, v.code) {
		return 0, fmt.Errorf("unknown voucher: %w", cart.ErrInvalidInput)
	}
	return v.discount, nil
}

func intPtr(v int) *int { return &v }

func newCartRouter(store *memoryStore) http.Handler {
	svc := &cart.Service{
		Store:    store,
		Products: store,
		Vouchers: flatVoucher{code: "HEAT5", discount: 500},
		TTL:      time.Hour,
	}
	h := &cart.Handler{
		Svc:       svc,
		Estimator: pricing.NewEstimator(pricing.DefaultWeightConfig(), zerolog.Nop()),
		Rates:     pricing.DefaultRateTable(),
		TaxBps:    600,
		Currency:  "EUR",
	}
	r := chi.NewRouter()
	r.Post("/api/v1/carts", h.Create)
	r.Get("/api/v1/carts/{id}", h.Get)
	r.Post("/api/v1/carts/{id}/items", h.AddItem)
	r.Patch("/api/v1/carts/{id}/items/{itemId}", h.UpdateItem)
	r.Delete("/api/v1/carts/{id}/items/{itemId}", h.RemoveItem)
	r.Post("/api/v1/carts/{id}/voucher", h.ApplyVoucher)
	r.Delete("/api/v1/carts/{id}/voucher", h.RemoveVoucher)
	r.Post("/api/v1/carts/{id}/quote/shipping", h.QuoteShipping)
	r.Post("/api/v1/carts/{id}/quote/tax", h.QuoteTax)
	return r
}

func seedBottle(store *memoryStore, name string, price int64, capacityMl int) catalog.Product {
	p := catalog.Product{
		ID:         uuid.New(),
		Slug:       strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:       name,
		PriceCents: price,
		Category:   pricing.CategoryBottle,
		CapacityMl: intPtr(capacityMl),
		Stock:      25,
		Active:     true,
	}
	store.products[p.ID] = p
	return p
}

func createCart(t *testing.T, router http.Handler) uuid.UUID {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		Data struct {
			CartID uuid.UUID `json:"cartId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Data.CartID
}

func addItem(t *testing.T, router http.Handler, cartID uuid.UUID, productID uuid.UUID, qty int) {
	t.Helper()
	body := fmt.Sprintf(`{"productId":%q,"qty":%d}`, productID, qty)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/items", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCartLifecycleWithPricingPreview(t *testing.T) {
	store := newMemoryStore()
	bottle := seedBottle(store, "Inferno Drops 200ml", 1000, 200)
	router := newCartRouter(store)

	cartID := createCart(t, router)
	addItem(t, router, cartID, bottle.ID, 1)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/carts/"+cartID.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Items   []cart.Item `json:"items"`
			Pricing struct {
				Subtotal int64 `json:"subtotal"`
				Net      int64 `json:"net"`
				Tax      int64 `json:"tax"`
				Total    int64 `json:"total"`
			} `json:"pricing"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 1)
	require.EqualValues(t, 1000, resp.Data.Pricing.Subtotal)
	require.EqualValues(t, 943, resp.Data.Pricing.Net)
	require.EqualValues(t, 57, resp.Data.Pricing.Tax)
	require.EqualValues(t, 1000, resp.Data.Pricing.Total)
	require.Equal(t, "EUR", resp.Data.Currency)
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	store := newMemoryStore()
	bottle := seedBottle(store, "Inferno Drops 100ml", 800, 100)
	router := newCartRouter(store)

	cartID := createCart(t, router)
	addItem(t, router, cartID, bottle.ID, 1)
	addItem(t, router, cartID, bottle.ID, 2)

	items, err := store.ListItems(t.Context(), cartID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 3, items[0].Qty)
	require.EqualValues(t, 2400, items[0].SubtotalCents)
}

func TestAddItemRejectsUnknownProduct(t *testing.T) {
	store := newMemoryStore()
	router := newCartRouter(store)

	cartID := createCart(t, router)
	body := fmt.Sprintf(`{"productId":%q,"qty":1}`, uuid.New())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/items", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQuoteShippingGermanNationalRate(t *testing.T) {
	store := newMemoryStore()
	bottle := seedBottle(store, "Inferno Drops 200ml", 1000, 200)
	router := newCartRouter(store)

	cartID := createCart(t, router)
	addItem(t, router, cartID, bottle.ID, 1)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/quote/shipping",
		strings.NewReader(`{"country":"DE"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Data struct {
			Zone          string  `json:"zone"`
			WeightKg      float64 `json:"weightKg"`
			ShippingCents int64   `json:"shippingCents"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, pricing.ZoneDEU, resp.Data.Zone)
	require.InDelta(t, 0.55, resp.Data.WeightKg, 1e-9)
	require.EqualValues(t, 590, resp.Data.ShippingCents)
}

func TestQuoteShippingFreeAboveThreshold(t *testing.T) {
	store := newMemoryStore()
	bottle := seedBottle(store, "Inferno Drops 200ml", 1000, 200)
	router := newCartRouter(store)

	cartID := createCart(t, router)
	addItem(t, router, cartID, bottle.ID, 6)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/quote/shipping",
		strings.NewReader(`{"country":"DEU"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			ShippingCents int64 `json:"shippingCents"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Zero(t, resp.Data.ShippingCents)
}

func TestQuoteShippingRestOfWorldBillsWeight(t *testing.T) {
	store := newMemoryStore()
	bottle := seedBottle(store, "Inferno Drops 200ml", 1000, 200)
	router := newCartRouter(store)

	cartID := createCart(t, router)
	addItem(t, router, cartID, bottle.ID, 3)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/quote/shipping",
		strings.NewReader(`{"country":"USA"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Zone          string  `json:"zone"`
			WeightKg      float64 `json:"weightKg"`
			ShippingCents int64   `json:"shippingCents"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, pricing.ZoneDefault, resp.Data.Zone)
	require.InDelta(t, 1.45, resp.Data.WeightKg, 1e-9)
	// 1990 base plus 2 started kilograms at 200 each.
	require.EqualValues(t, 2390, resp.Data.ShippingCents)
}

func TestQuoteTax(t *testing.T) {
	store := newMemoryStore()
	bottle := seedBottle(store, "Inferno Drops 200ml", 1000, 200)
	router := newCartRouter(store)

	cartID := createCart(t, router)
	addItem(t, router, cartID, bottle.ID, 1)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/quote/tax", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data pricing.TaxBreakdown `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.EqualValues(t, 943, resp.Data.Net)
	require.EqualValues(t, 57, resp.Data.Tax)
}

func TestVoucherApplyAndRemove(t *testing.T) {
	store := newMemoryStore()
	bottle := seedBottle(store, "Inferno Drops 200ml", 1000, 200)
	router := newCartRouter(store)

	cartID := createCart(t, router)
	addItem(t, router, cartID, bottle.ID, 2)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/voucher",
		strings.NewReader(`{"code":"HEAT5"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "500")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+cartID.String()+"/voucher",
		strings.NewReader(`{"code":"NOPE"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/carts/"+cartID.String()+"/voucher", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestExpiredCartNotFound(t *testing.T) {
	store := newMemoryStore()
	router := newCartRouter(store)

	c, err := store.CreateCart(t.Context(), "anon", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/carts/"+c.ID.String(), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
