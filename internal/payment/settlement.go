package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/chilisaus/storefront-api/internal/catalog"
	"github.com/chilisaus/storefront-api/internal/order"
	"github.com/chilisaus/storefront-api/internal/pricing"
	"github.com/chilisaus/storefront-api/internal/voucher"
)

// shippingLineName is the synthetic line checkout appends for carriage.
// It is excluded from the item subtotal and stock movements.
const shippingLineName = "Shipping"

// PGSettler persists completed checkouts into Postgres within a single
// transaction.
type PGSettler struct {
	Pool   *pgxpool.Pool
	TaxBps int
	Logger zerolog.Logger
}

// Settle writes the order and its lines, decrements stock and consumes
// the voucher redemption, all atomically.
func (s *PGSettler) Settle(ctx context.Context, details CheckoutDetails) (Settlement, error) {
	if s == nil || s.Pool == nil {
		return Settlement{}, errors.New("payment: settler not configured")
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Settlement{}, fmt.Errorf("payment: begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orders := order.NewStore(tx)
	products := catalog.NewStore(tx)
	vouchers := voucher.NewStore(tx)

	var shippingCents, subtotalCents int64
	itemLines := make([]DetailLine, 0, len(details.Lines))
	for _, line := range details.Lines {
		if line.Name == shippingLineName {
			shippingCents += line.SubtotalCents
			continue
		}
		subtotalCents += line.SubtotalCents
		itemLines = append(itemLines, line)
	}

	breakdown := pricing.ExtractTax(subtotalCents, s.TaxBps)
	totalCents := details.AmountTotalCents
	if totalCents == 0 {
		totalCents = subtotalCents + shippingCents - details.DiscountCents
	}
	// PromoCode is only populated when the provider granted the discount,
	// so an unredeemed code never reaches the voucher counter.
	var voucherCode *string
	if code := strings.TrimSpace(details.PromoCode); code != "" {
		voucherCode = &code
	}

	o, err := orders.Insert(ctx, order.Order{
		SessionID:     details.SessionID,
		Email:         details.Email,
		Country:       details.Country,
		Currency:      details.Currency,
		Status:        order.StatusPaid,
		SubtotalCents: subtotalCents,
		ShippingCents: shippingCents,
		NetCents:      breakdown.Net,
		TaxCents:      breakdown.Tax,
		TotalCents:    totalCents,
		VoucherCode:   voucherCode,
	})
	if err != nil {
		return Settlement{}, fmt.Errorf("payment: insert order: %w", err)
	}

	settlement := Settlement{Order: o}
	for _, line := range itemLines {
		item, err := orders.InsertItem(ctx, order.Item{
			OrderID:        o.ID,
			Name:           line.Name,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitAmountCents,
			SubtotalCents:  line.SubtotalCents,
			TaxCents:       pricing.TaxFromTotal(line.SubtotalCents, s.TaxBps),
		})
		if err != nil {
			return Settlement{}, fmt.Errorf("payment: insert order item: %w", err)
		}
		settlement.Items = append(settlement.Items, item)

		stock, threshold, err := products.DecrementStock(ctx, productName(line.Name), line.Qty)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				s.Logger.Warn().Str("line", line.Name).Msg("settled line does not match a catalog product")
				continue
			}
			return Settlement{}, fmt.Errorf("payment: decrement stock: %w", err)
		}
		if stock <= threshold {
			settlement.LowStock = append(settlement.LowStock, LowStockAlert{Name: productName(line.Name), Stock: stock})
		}
	}

	if voucherCode != nil {
		if err := vouchers.IncrementRedemption(ctx, *voucherCode); err != nil {
			if errors.Is(err, voucher.ErrNotEligible) {
				s.Logger.Warn().Str("code", *voucherCode).Msg("settled voucher code unknown")
			} else {
				return Settlement{}, fmt.Errorf("payment: redeem voucher: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Settlement{}, fmt.Errorf("payment: commit settlement: %w", err)
	}
	return settlement, nil
}

// productName strips the selected-size suffix checkout appends to apparel
// lines, recovering the catalog display name.
func productName(lineName string) string {
	if i := strings.LastIndex(lineName, " ("); i > 0 && strings.HasSuffix(lineName, ")") {
		return lineName[:i]
	}
	return lineName
}
