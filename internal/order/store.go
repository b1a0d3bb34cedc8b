package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order: not found")

// StatusPaid is the only terminal state settled webhooks produce. Orders
// are created post-payment, so there is no pending state to track.
const StatusPaid = "paid"

// DBTX is the pgx query surface the store relies on.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Order is a settled purchase.
type Order struct {
	ID            uuid.UUID `json:"id"`
	SessionID     string    `json:"sessionId"`
	Email         string    `json:"email"`
	Country       string    `json:"country"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	SubtotalCents int64     `json:"subtotalCents"`
	ShippingCents int64     `json:"shippingCents"`
	NetCents      int64     `json:"netCents"`
	TaxCents      int64     `json:"taxCents"`
	TotalCents    int64     `json:"totalCents"`
	VoucherCode   *string   `json:"voucherCode,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Item is a settled order line. TaxCents is the VAT portion contained in
// the line subtotal.
type Item struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"-"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	SubtotalCents  int64     `json:"subtotalCents"`
	TaxCents       int64     `json:"taxCents"`
}

// Store provides order persistence over pgx.
type Store struct {
	db DBTX
}

// NewStore constructs an order store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const orderColumns = `id, session_id, email, country, currency, status, subtotal_cents,
	shipping_cents, net_cents, tax_cents, total_cents, voucher_code, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.SessionID, &o.Email, &o.Country, &o.Currency, &o.Status,
		&o.SubtotalCents, &o.ShippingCents, &o.NetCents, &o.TaxCents, &o.TotalCents,
		&o.VoucherCode, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// Insert stores a settled order.
func (s *Store) Insert(ctx context.Context, o Order) (Order, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (session_id, email, country, currency, status, subtotal_cents,
			shipping_cents, net_cents, tax_cents, total_cents, voucher_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		o.SessionID, o.Email, o.Country, o.Currency, o.Status, o.SubtotalCents,
		o.ShippingCents, o.NetCents, o.TaxCents, o.TotalCents, o.VoucherCode)
	return scanOrder(row)
}

// InsertItem stores an order line.
func (s *Store) InsertItem(ctx context.Context, it Item) (Item, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, name, qty, unit_price_cents, subtotal_cents, tax_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, name, qty, unit_price_cents, subtotal_cents, tax_cents`,
		it.OrderID, it.Name, it.Qty, it.UnitPriceCents, it.SubtotalCents, it.TaxCents)
	var out Item
	err := row.Scan(&out.ID, &out.OrderID, &out.Name, &out.Qty, &out.UnitPriceCents, &out.SubtotalCents, &out.TaxCents)
	return out, err
}

// Get fetches an order by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	return scanOrder(row)
}

// GetBySessionID fetches an order by the payment session that settled it.
func (s *Store) GetBySessionID(ctx context.Context, sessionID string) (Order, error) {
	row := s.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE session_id = $1", sessionID)
	return scanOrder(row)
}

// List returns orders newest first with a total count.
func (s *Store) List(ctx context.Context, page, perPage int) ([]Order, int64, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	var total int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM orders").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]Order, 0, perPage)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// ListItems returns the lines of an order.
func (s *Store) ListItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, name, qty, unit_price_cents, subtotal_cents, tax_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Name, &it.Qty, &it.UnitPriceCents, &it.SubtotalCents, &it.TaxCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
