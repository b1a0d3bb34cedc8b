package emails_test

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/common"
	"github.com/chilisaus/storefront-api/internal/emails"
)

func sampleReceipt() emails.ReceiptData {
	return emails.ReceiptData{
		OrderID:       "ord_123",
		CustomerEmail: "buyer@example.com",
		Country:       "BE",
		Items: []emails.ReceiptItem{
			{Name: "Inferno Drops 200ml", Qty: 2, PriceCents: 1000},
			{Name: "Chilisaus Hoodie", Qty: 1, PriceCents: 4999},
		},
		SubtotalCents: 6999,
		ShippingCents: 1290,
		TaxCents:      469,
		TotalCents:    8289,
		TaxRateBps:    600,
	}
}

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "€0,00", emails.FormatPrice(0))
	require.Equal(t, "€9,99", emails.FormatPrice(999))
	require.Equal(t, "€12,05", emails.FormatPrice(1205))
	require.Equal(t, "-€5,90", emails.FormatPrice(-590))
}

func TestReceiptHTMLIncludesVATLine(t *testing.T) {
	html, err := emails.ReceiptHTML(sampleReceipt())
	require.NoError(t, err)
	require.Contains(t, html, "ord_123")
	require.Contains(t, html, "Inferno Drops 200ml x 2")
	require.Contains(t, html, "Including 6% VAT: €4,69")
	require.Contains(t, html, "Total Paid: €82,89")
}

func TestLowStockHTML(t *testing.T) {
	html, err := emails.LowStockHTML("Inferno Drops 100ml", 2)
	require.NoError(t, err)
	require.Contains(t, html, "Inferno Drops 100ml")
	require.Contains(t, html, "<strong style=\"color: #d32f2f;\">2</strong>")
}

func TestHandleOrderReceiptSendsCustomerAndSellerCopies(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	handler := &emails.Handler{Sender: outbox, SellerEmail: "sales@chilisaus.be", Logger: zerolog.Nop()}

	task, err := emails.NewOrderReceiptTask(sampleReceipt())
	require.NoError(t, err)
	require.NoError(t, handler.HandleOrderReceipt(t.Context(), task))

	require.Len(t, outbox.Outbox, 2)
	require.Equal(t, "buyer@example.com", outbox.Outbox[0].To)
	require.Contains(t, outbox.Outbox[0].Subject, "ord_123")
	require.Equal(t, "sales@chilisaus.be", outbox.Outbox[1].To)
	require.Contains(t, outbox.Outbox[1].HTML, "Packing Slip")
}

func TestHandleLowStock(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	handler := &emails.Handler{Sender: outbox, SellerEmail: "sales@chilisaus.be", Logger: zerolog.Nop()}

	task, err := emails.NewLowStockTask(emails.LowStockPayload{ProductName: "Mystery Box", Stock: 1})
	require.NoError(t, err)
	require.NoError(t, handler.HandleLowStock(t.Context(), task))

	require.Len(t, outbox.Outbox, 1)
	require.Contains(t, outbox.Outbox[0].Subject, "Mystery Box")
}

func TestReceiptPayloadRoundTrip(t *testing.T) {
	task, err := emails.NewOrderReceiptTask(sampleReceipt())
	require.NoError(t, err)
	require.Equal(t, emails.TypeOrderReceipt, task.Type())

	var decoded emails.ReceiptData
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, sampleReceipt(), decoded)
}
