package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the pgx query surface the store relies on.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Cart is a guest shopping cart. Carts expire after a rolling TTL.
type Cart struct {
	ID                 uuid.UUID `json:"id"`
	AnonID             string    `json:"anonId"`
	AppliedVoucherCode *string   `json:"voucher,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// Item is a cart line. Name and price are denormalised at add time so a
// later catalog edit does not silently reprice an open cart.
type Item struct {
	ID             uuid.UUID `json:"id"`
	CartID         uuid.UUID `json:"-"`
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	SelectedSize   *string   `json:"selectedSize,omitempty"`
	Qty            int       `json:"qty"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	SubtotalCents  int64     `json:"subtotalCents"`
}

// QuoteItem extends a cart line with the product attributes weight
// estimation needs.
type QuoteItem struct {
	Item
	Category    string
	CapacityMl  *int
	WeightGrams *int
}

// Store provides cart persistence over pgx.
type Store struct {
	db DBTX
}

// NewStore constructs a cart store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const cartColumns = "id, anon_id, applied_voucher_code, created_at, updated_at, expires_at"

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.AnonID, &c.AppliedVoucherCode, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// CreateCart inserts a new guest cart.
func (s *Store) CreateCart(ctx context.Context, anonID string, expiresAt time.Time) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO carts (anon_id, expires_at) VALUES ($1, $2)
		RETURNING `+cartColumns, anonID, expiresAt)
	return scanCart(row)
}

// GetCart fetches a cart by id.
func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	row := s.db.QueryRow(ctx, "SELECT "+cartColumns+" FROM carts WHERE id = $1", id)
	return scanCart(row)
}

// GetCartByAnonID fetches the newest unexpired cart for an anonymous id.
func (s *Store) GetCartByAnonID(ctx context.Context, anonID string) (Cart, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM carts
		WHERE anon_id = $1 AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1`, anonID)
	return scanCart(row)
}

// TouchCart extends a cart's expiry.
func (s *Store) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, "UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1", id, expiresAt)
	return err
}

// SetVoucher attaches or clears the cart's voucher code.
func (s *Store) SetVoucher(ctx context.Context, id uuid.UUID, code *string) error {
	_, err := s.db.Exec(ctx, "UPDATE carts SET applied_voucher_code = $2, updated_at = now() WHERE id = $1", id, code)
	return err
}

const itemColumns = "id, cart_id, product_id, name, slug, selected_size, qty, unit_price_cents, subtotal_cents"

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Slug,
			&it.SelectedSize, &it.Qty, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListItems returns the lines of a cart in insertion order.
func (s *Store) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := s.db.Query(ctx, "SELECT "+itemColumns+" FROM cart_items WHERE cart_id = $1 ORDER BY created_at", cartID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// ListItemsForQuote joins cart lines with the product attributes needed for
// package weight estimation.
func (s *Store) ListItemsForQuote(ctx context.Context, cartID uuid.UUID) ([]QuoteItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.name, ci.slug, ci.selected_size,
			ci.qty, ci.unit_price_cents, ci.subtotal_cents,
			p.category, p.capacity_ml, p.weight_grams
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QuoteItem
	for rows.Next() {
		var it QuoteItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Slug,
			&it.SelectedSize, &it.Qty, &it.UnitPriceCents, &it.SubtotalCents,
			&it.Category, &it.CapacityMl, &it.WeightGrams); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindItem locates a cart line matching product and selected size.
func (s *Store) FindItem(ctx context.Context, cartID, productID uuid.UUID, size *string) (Item, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND selected_size IS NOT DISTINCT FROM $3`,
		cartID, productID, size)
	var it Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Slug,
		&it.SelectedSize, &it.Qty, &it.UnitPriceCents, &it.SubtotalCents)
	return it, err
}

// GetItem fetches a cart line by id.
func (s *Store) GetItem(ctx context.Context, itemID uuid.UUID) (Item, error) {
	row := s.db.QueryRow(ctx, "SELECT "+itemColumns+" FROM cart_items WHERE id = $1", itemID)
	var it Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Slug,
		&it.SelectedSize, &it.Qty, &it.UnitPriceCents, &it.SubtotalCents)
	return it, err
}

// InsertItem adds a new cart line.
func (s *Store) InsertItem(ctx context.Context, it Item) (Item, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, name, slug, selected_size, qty, unit_price_cents, subtotal_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+itemColumns,
		it.CartID, it.ProductID, it.Name, it.Slug, it.SelectedSize, it.Qty, it.UnitPriceCents, it.SubtotalCents)
	var out Item
	err := row.Scan(&out.ID, &out.CartID, &out.ProductID, &out.Name, &out.Slug,
		&out.SelectedSize, &out.Qty, &out.UnitPriceCents, &out.SubtotalCents)
	return out, err
}

// UpdateItemQty sets the quantity and recomputed subtotal of a cart line.
func (s *Store) UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int, subtotal int64) error {
	_, err := s.db.Exec(ctx, "UPDATE cart_items SET qty = $2, subtotal_cents = $3 WHERE id = $1", itemID, qty, subtotal)
	return err
}

// DeleteItem removes a cart line scoped to its cart.
func (s *Store) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	return err
}
