package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chilisaus/storefront-api/internal/catalog"
	"github.com/chilisaus/storefront-api/internal/lock"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ProductSource resolves catalog rows for cart mutations.
type ProductSource interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// VoucherEvaluator computes the discount a voucher code yields for a
// given cart subtotal without consuming a redemption.
type VoucherEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotalCents int64) (int64, error)
}

// Storage is the persistence surface the service needs. *Store implements
// it over Postgres.
type Storage interface {
	CreateCart(ctx context.Context, anonID string, expiresAt time.Time) (Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	GetCartByAnonID(ctx context.Context, anonID string) (Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	SetVoucher(ctx context.Context, id uuid.UUID, code *string) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	ListItemsForQuote(ctx context.Context, cartID uuid.UUID) ([]QuoteItem, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID, size *string) (Item, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (Item, error)
	InsertItem(ctx context.Context, it Item) (Item, error)
	UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int, subtotal int64) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
}

// Service encapsulates cart domain operations.
type Service struct {
	Store    Storage
	Products ProductSource
	Vouchers VoucherEvaluator
	Locks    *lock.Locker
	TTL      time.Duration
	Now      func() time.Time
}

// withCartLock serialises mutations of a single cart when a locker is
// configured; without one the mutation runs directly.
func (s *Service) withCartLock(ctx context.Context, cartID uuid.UUID, fn func(context.Context) error) error {
	if s.Locks == nil {
		return fn(ctx)
	}
	return s.Locks.WithLock(ctx, "lock:cart:"+cartID.String(), fn)
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads the active cart for an anonymous id, creating one when
// none exists, and extends its expiry.
func (s *Service) EnsureCart(ctx context.Context, anonID string) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	if anonID == "" {
		return Cart{}, fmt.Errorf("anon id required: %w", ErrInvalidInput)
	}
	expires := s.now().Add(s.ttl())
	cart, err := s.Store.GetCartByAnonID(ctx, anonID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.Store.CreateCart(ctx, anonID, expires)
		}
		return Cart{}, err
	}
	_ = s.Store.TouchCart(ctx, cart.ID, expires)
	return cart, nil
}

// GetCart loads a cart by id and rejects expired ones.
func (s *Service) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	cart, err := s.Store.GetCart(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, err
	}
	if !cart.ExpiresAt.IsZero() && cart.ExpiresAt.Before(s.now()) {
		return Cart{}, ErrNotFound
	}
	return cart, nil
}

// AddItem inserts or increments a cart line, pricing it from the catalog.
// Concurrent adds of the same line race on the find-then-insert step, so the
// mutation runs under a per-cart lock.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, size *string, qty int) error {
	if s == nil || s.Store == nil || s.Products == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	return s.withCartLock(ctx, cartID, func(ctx context.Context) error {
		return s.addItem(ctx, cartID, productID, size, qty)
	})
}

func (s *Service) addItem(ctx context.Context, cartID, productID uuid.UUID, size *string, qty int) error {
	cart, err := s.GetCart(ctx, cartID)
	if err != nil {
		return err
	}

	existing, err := s.Store.FindItem(ctx, cart.ID, productID, size)
	if err == nil {
		newQty := existing.Qty + qty
		if err := s.Store.UpdateItemQty(ctx, existing.ID, newQty, int64(newQty)*existing.UnitPriceCents); err != nil {
			return err
		}
		_ = s.Store.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	product, err := s.Products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("unknown product: %w", ErrInvalidInput)
		}
		return err
	}
	if !product.Active {
		return fmt.Errorf("product unavailable: %w", ErrInvalidInput)
	}
	if product.Stock < qty {
		return fmt.Errorf("insufficient stock: %w", ErrInvalidInput)
	}
	if size != nil && *size != "" && !containsFold(product.Sizes, *size) {
		return fmt.Errorf("size not offered: %w", ErrInvalidInput)
	}
	if _, err := s.Store.InsertItem(ctx, Item{
		CartID:         cart.ID,
		ProductID:      product.ID,
		Name:           product.Name,
		Slug:           product.Slug,
		SelectedSize:   size,
		Qty:            qty,
		UnitPriceCents: product.PriceCents,
		SubtotalCents:  int64(qty) * product.PriceCents,
	}); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
	return nil
}

// UpdateQty sets the quantity of a cart line.
func (s *Service) UpdateQty(ctx context.Context, itemID uuid.UUID, qty int) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	item, err := s.Store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := s.Store.UpdateItemQty(ctx, item.ID, qty, int64(qty)*item.UnitPriceCents); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, item.CartID, s.now().Add(s.ttl()))
	return nil
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Store.DeleteItem(ctx, cartID, itemID); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// ApplyVoucher validates a voucher against the cart subtotal and attaches
// it, returning the discount it currently yields.
func (s *Service) ApplyVoucher(ctx context.Context, cartID uuid.UUID, code string) (int64, error) {
	if s == nil || s.Store == nil || s.Vouchers == nil {
		return 0, errors.New("cart service not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, fmt.Errorf("voucher code required: %w", ErrInvalidInput)
	}
	cart, err := s.GetCart(ctx, cartID)
	if err != nil {
		return 0, err
	}
	subtotal, err := s.Subtotal(ctx, cart.ID)
	if err != nil {
		return 0, err
	}
	discount, err := s.Vouchers.Evaluate(ctx, code, subtotal)
	if err != nil {
		return 0, err
	}
	if err := s.Store.SetVoucher(ctx, cart.ID, &code); err != nil {
		return 0, err
	}
	_ = s.Store.TouchCart(ctx, cart.ID, s.now().Add(s.ttl()))
	return discount, nil
}

// RemoveVoucher clears an applied voucher.
func (s *Service) RemoveVoucher(ctx context.Context, cartID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Store.SetVoucher(ctx, cartID, nil); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// Subtotal sums the line subtotals of a cart.
func (s *Service) Subtotal(ctx context.Context, cartID uuid.UUID) (int64, error) {
	items, err := s.Store.ListItems(ctx, cartID)
	if err != nil {
		return 0, err
	}
	var subtotal int64
	for _, it := range items {
		subtotal += it.SubtotalCents
	}
	return subtotal, nil
}

// Discount re-evaluates the cart's applied voucher, if any. Evaluation
// failures degrade to a zero discount rather than blocking the cart.
func (s *Service) Discount(ctx context.Context, cart Cart, subtotal int64) int64 {
	if s == nil || s.Vouchers == nil || cart.AppliedVoucherCode == nil || *cart.AppliedVoucherCode == "" {
		return 0
	}
	discount, err := s.Vouchers.Evaluate(ctx, *cart.AppliedVoucherCode, subtotal)
	if err != nil {
		return 0
	}
	return discount
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
