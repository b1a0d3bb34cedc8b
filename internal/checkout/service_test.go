package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/cart"
	"github.com/chilisaus/storefront-api/internal/checkout"
	"github.com/chilisaus/storefront-api/internal/payment"
	"github.com/chilisaus/storefront-api/internal/pricing"
)

type fixedCartStore struct {
	cart  cart.Cart
	items []cart.QuoteItem
}

func (s *fixedCartStore) CreateCart(context.Context, string, time.Time) (cart.Cart, error) {
	return cart.Cart{}, pgx.ErrNoRows
}

func (s *fixedCartStore) GetCart(_ context.Context, id uuid.UUID) (cart.Cart, error) {
	if id != s.cart.ID {
		return cart.Cart{}, pgx.ErrNoRows
	}
	return s.cart, nil
}

func (s *fixedCartStore) GetCartByAnonID(context.Context, string) (cart.Cart, error) {
	return cart.Cart{}, pgx.ErrNoRows
}

func (s *fixedCartStore) TouchCart(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *fixedCartStore) SetVoucher(context.Context, uuid.UUID, *string) error { return nil }

func (s *fixedCartStore) ListItems(_ context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	items := make([]cart.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, it.Item)
	}
	return items, nil
}

func (s *fixedCartStore) ListItemsForQuote(_ context.Context, cartID uuid.UUID) ([]cart.QuoteItem, error) {
	if cartID != s.cart.ID {
		return nil, nil
	}
	return s.items, nil
}

func (s *fixedCartStore) FindItem(context.Context, uuid.UUID, uuid.UUID, *string) (cart.Item, error) {
	return cart.Item{}, pgx.ErrNoRows
}

func (s *fixedCartStore) GetItem(context.Context, uuid.UUID) (cart.Item, error) {
	return cart.Item{}, pgx.ErrNoRows
}

func (s *fixedCartStore) InsertItem(_ context.Context, it cart.Item) (cart.Item, error) {
	return it, nil
}

func (s *fixedCartStore) UpdateItemQty(context.Context, uuid.UUID, int, int64) error { return nil }

func (s *fixedCartStore) DeleteItem(context.Context, uuid.UUID, uuid.UUID) error { return nil }

// flatVoucher grants a fixed amount off for one known code, the same
// contract the voucher service exposes to carts.
type flatVoucher struct {
	code string
	off  int64
}

func (v flatVoucher) Evaluate(_ context.Context, code string, _ int64) (int64, error) {
	if !strings.EqualFold(code, v.code) {
		return 0, errors.New("voucher not eligible")
	}
	return v.off, nil
}

type capturingProvider struct {
	lastReq payment.SessionRequest
}

func (p *capturingProvider) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	p.lastReq = req
	return payment.Session{ID: "cs_test_123", URL: "https://pay.example/cs_test_123"}, nil
}

func (p *capturingProvider) VerifyWebhook([]byte, string) (payment.Event, error) {
	return payment.Event{}, nil
}

func (p *capturingProvider) CheckoutDetails(context.Context, string) (payment.CheckoutDetails, error) {
	return payment.CheckoutDetails{}, nil
}

func intptr(v int) *int { return &v }

func strptr(v string) *string { return &v }

func newCheckoutService(t *testing.T, store *fixedCartStore, provider payment.Provider) *checkout.Service {
	t.Helper()
	return &checkout.Service{
		Carts:            &cart.Service{Store: store},
		Estimator:        pricing.NewEstimator(pricing.DefaultWeightConfig(), zerolog.Nop()),
		Rates:            pricing.DefaultRateTable(),
		Provider:         provider,
		Validate:         validator.New(),
		Currency:         "eur",
		AllowedCountries: []string{"BE", "DE", "NL"},
		DefaultCountry:   "BE",
		SuccessURL:       "https://chilisaus.be/checkout/success",
		CancelURL:        "https://chilisaus.be/checkout/cancel",
		Logger:           zerolog.Nop(),
	}
}

func sauceCart() *fixedCartStore {
	cartID := uuid.New()
	productID := uuid.New()
	return &fixedCartStore{
		cart: cart.Cart{ID: cartID, AnonID: "anon-1", ExpiresAt: time.Now().Add(time.Hour)},
		items: []cart.QuoteItem{
			{
				Item: cart.Item{
					ID:             uuid.New(),
					CartID:         cartID,
					ProductID:      productID,
					Name:           "Inferno Drops 200ml",
					Slug:           "inferno-drops-200ml",
					Qty:            2,
					UnitPriceCents: 1000,
					SubtotalCents:  2000,
				},
				Category:   "sauce",
				CapacityMl: intptr(200),
			},
		},
	}
}

func TestCreateAppendsShippingLine(t *testing.T) {
	store := sauceCart()
	provider := &capturingProvider{}
	svc := newCheckoutService(t, store, provider)

	out, err := svc.Create(context.Background(), checkout.Input{
		CartID:  store.cart.ID.String(),
		Country: "de",
		Email:   "buyer@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_123", out.SessionID)
	require.Equal(t, "https://pay.example/cs_test_123", out.RedirectURL)

	req := provider.lastReq
	require.Len(t, req.Lines, 2)
	require.Equal(t, "Inferno Drops 200ml", req.Lines[0].Name)
	require.Equal(t, 2, req.Lines[0].Qty)
	// Two 200ml bottles plus packaging weigh exactly 1kg, within the
	// domestic flat rate.
	require.Equal(t, payment.SessionLine{Name: "Shipping", Qty: 1, UnitPriceCents: 590}, req.Lines[1])
	require.Equal(t, store.cart.ID.String(), req.Metadata["cartId"])
	require.True(t, req.AllowPromoCodes)
}

func TestCreateAppliesVoucherDiscountToSession(t *testing.T) {
	store := sauceCart()
	store.cart.AppliedVoucherCode = strptr("HEAT5")
	provider := &capturingProvider{}
	svc := newCheckoutService(t, store, provider)
	svc.Carts.Vouchers = flatVoucher{code: "HEAT5", off: 500}

	_, err := svc.Create(context.Background(), checkout.Input{
		CartID:  store.cart.ID.String(),
		Country: "BE",
	})
	require.NoError(t, err)

	req := provider.lastReq
	require.Equal(t, "HEAT5", req.Metadata["voucher"])
	require.Equal(t, int64(500), req.DiscountCents)
	require.False(t, req.AllowPromoCodes)

	// The charged total must be the total the cart preview showed:
	// items minus voucher plus shipping.
	var lineTotal int64
	for _, line := range req.Lines {
		lineTotal += int64(line.Qty) * line.UnitPriceCents
	}
	require.Equal(t, int64(2000+1290-500), lineTotal-req.DiscountCents)
}

func TestCreateDropsIneligibleVoucher(t *testing.T) {
	store := sauceCart()
	store.cart.AppliedVoucherCode = strptr("EXPIRED")
	provider := &capturingProvider{}
	svc := newCheckoutService(t, store, provider)
	svc.Carts.Vouchers = flatVoucher{code: "HEAT5", off: 500}

	_, err := svc.Create(context.Background(), checkout.Input{
		CartID:  store.cart.ID.String(),
		Country: "BE",
	})
	require.NoError(t, err)

	req := provider.lastReq
	require.Zero(t, req.DiscountCents)
	require.NotContains(t, req.Metadata, "voucher")
	require.True(t, req.AllowPromoCodes)
}

func TestCreateSkipsShippingLineAboveFreeThreshold(t *testing.T) {
	store := sauceCart()
	store.items[0].Qty = 6
	store.items[0].UnitPriceCents = 1000
	store.items[0].SubtotalCents = 6000
	provider := &capturingProvider{}
	svc := newCheckoutService(t, store, provider)

	_, err := svc.Create(context.Background(), checkout.Input{
		CartID:  store.cart.ID.String(),
		Country: "DE",
	})
	require.NoError(t, err)
	for _, line := range provider.lastReq.Lines {
		require.NotEqual(t, "Shipping", line.Name)
	}
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	store := sauceCart()
	store.items = nil
	svc := newCheckoutService(t, store, &capturingProvider{})

	_, err := svc.Create(context.Background(), checkout.Input{
		CartID:  store.cart.ID.String(),
		Country: "BE",
	})
	require.ErrorIs(t, err, cart.ErrInvalidInput)
}

func TestCreateUnknownCart(t *testing.T) {
	svc := newCheckoutService(t, sauceCart(), &capturingProvider{})

	_, err := svc.Create(context.Background(), checkout.Input{
		CartID:  uuid.NewString(),
		Country: "BE",
	})
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestHandlerCreate(t *testing.T) {
	store := sauceCart()
	svc := newCheckoutService(t, store, &capturingProvider{})
	handler := &checkout.Handler{Svc: svc}

	body := `{"cartId":"` + store.cart.ID.String() + `","country":"BE","email":"buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data checkout.Output `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "cs_test_123", resp.Data.SessionID)
}

func TestHandlerCreateBadCartID(t *testing.T) {
	svc := newCheckoutService(t, sauceCart(), &capturingProvider{})
	handler := &checkout.Handler{Svc: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"cartId":"nope","country":"BE"}`))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
