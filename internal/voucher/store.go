package voucher

import (
	"context"
	"errors"
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

// Voucher is a stored discount code.
type Voucher struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code"`
	Kind       string     `json:"kind"`
	ValueCents int64      `json:"valueCents"`
	PercentBps *int32     `json:"percentBps,omitempty"`
	MinSpend   int64      `json:"minSpendCents"`
	UsageLimit *int32     `json:"usageLimit,omitempty"`
	UsedCount  int32      `json:"usedCount"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidTo    *time.Time `json:"validTo,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Rule converts the stored voucher into its evaluation form.
func (v Voucher) Rule() Rule {
	return Rule{
		Code:       v.Code,
		Kind:       v.Kind,
		ValueCents: v.ValueCents,
		PercentBps: v.PercentBps,
		MinSpend:   v.MinSpend,
		UsageLimit: v.UsageLimit,
		UsedCount:  v.UsedCount,
		ValidFrom:  v.ValidFrom,
		ValidTo:    v.ValidTo,
	}
}

// Store provides voucher persistence over pgx.
type Store struct {
	db DBTX
}

// NewStore constructs a voucher store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const voucherColumns = `id, code, kind, value_cents, percent_bps, min_spend_cents,
	usage_limit, used_count, valid_from, valid_to, created_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Code, &v.Kind, &v.ValueCents, &v.PercentBps, &v.MinSpend,
		&v.UsageLimit, &v.UsedCount, &v.ValidFrom, &v.ValidTo, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrNotEligible
	}
	return v, err
}

// GetByCode fetches a voucher by its case-insensitive code.
func (s *Store) GetByCode(ctx context.Context, code string) (Voucher, error) {
	row := s.db.QueryRow(ctx, "SELECT "+voucherColumns+" FROM vouchers WHERE upper(code) = upper($1)", code)
	return scanVoucher(row)
}

// List returns all vouchers newest first.
func (s *Store) List(ctx context.Context) ([]Voucher, error) {
	rows, err := s.db.Query(ctx, "SELECT "+voucherColumns+" FROM vouchers ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

// Create inserts a voucher.
func (s *Store) Create(ctx context.Context, v Voucher) (Voucher, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO vouchers (code, kind, value_cents, percent_bps, min_spend_cents, usage_limit, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+voucherColumns,
		v.Code, v.Kind, v.ValueCents, v.PercentBps, v.MinSpend, v.UsageLimit, v.ValidFrom, v.ValidTo)
	return scanVoucher(row)
}

// IncrementRedemption bumps the used counter after order settlement.
func (s *Store) IncrementRedemption(ctx context.Context, code string) error {
	tag, err := s.db.Exec(ctx, "UPDATE vouchers SET used_count = used_count + 1 WHERE upper(code) = upper($1)", code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEligible
	}
	return nil
}
