package emails

import (
	"fmt"
	"html/template"
	"strings"
)

// ReceiptItem is a purchased line rendered in order emails.
type ReceiptItem struct {
	Name       string
	Qty        int
	PriceCents int64
}

// ReceiptData carries everything the order email templates render.
type ReceiptData struct {
	OrderID       string
	CustomerEmail string
	Country       string
	Items         []ReceiptItem
	SubtotalCents int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
	TaxRateBps    int
}

// FormatPrice renders cents as a euro amount with a comma decimal separator.
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s€%d,%02d", sign, cents/100, cents%100)
}

func taxRatePercent(bps int) string {
	if bps%100 == 0 {
		return fmt.Sprintf("%d", bps/100)
	}
	return strings.TrimRight(fmt.Sprintf("%.2f", float64(bps)/100), "0")
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"price": FormatPrice,
}).Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; color: #333; line-height: 1.6;">
  <h1 style="color: #000;">Thank you for your order!</h1>
  <p>Your order <strong>{{.OrderID}}</strong> has been received and is being processed.</p>

  <h3>Order Details:</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <tbody>
      {{range .Items}}<tr>
        <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Name}} x {{.Qty}}</td>
        <td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{price .PriceCents}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>

  <hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">

  <div style="text-align: right;">
    <p>Subtotal (inc. VAT): {{price .SubtotalCents}}</p>
    <p>Shipping: {{price .ShippingCents}}</p>
    <p style="font-size: 0.9em; color: #666;">Including {{.TaxRate}}% VAT: {{price .TaxCents}}</p>
    <p style="font-weight: bold; font-size: 1.2em; color: #d32f2f;">Total Paid: {{price .TotalCents}}</p>
  </div>

  <p>We'll send you another email once your spicy package is on its way!</p>

  <p style="margin-top: 40px; font-size: 0.8em; color: #999;">
    Chilisaus.be - You Can Never Have Too Much Hot Sauce
  </p>
</div>`))

var packingSlipTmpl = template.Must(template.New("packing").Funcs(template.FuncMap{
	"price": FormatPrice,
}).Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; color: #333;">
  <h1 style="color: #d32f2f;">New Order: Packing Slip</h1>
  <p>Order ID: <strong>{{.OrderID}}</strong></p>
  <p>Customer: {{.CustomerEmail}} ({{.Country}})</p>

  <h3>Order Items:</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <thead>
      <tr style="background: #f8f8f8;">
        <th style="padding: 10px; text-align: left;">Product</th>
        <th style="padding: 10px; text-align: center;">Qty</th>
        <th style="padding: 10px; text-align: right;">Price</th>
      </tr>
    </thead>
    <tbody>
      {{range .Items}}<tr>
        <td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Name}}</td>
        <td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center;">{{.Qty}}</td>
        <td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{price .PriceCents}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>

  <div style="margin-top: 20px; text-align: right;">
    <p>Subtotal: {{price .SubtotalCents}}</p>
    <p>Shipping: {{price .ShippingCents}}</p>
    <p style="font-weight: bold; font-size: 1.2em;">Total: {{price .TotalCents}}</p>
  </div>
</div>`))

var lowStockTmpl = template.Must(template.New("lowstock").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; color: #333;">
  <h1 style="color: #d32f2f;">Low Stock Alert</h1>
  <p>The following product is running low on stock:</p>

  <div style="background: #fff3f3; padding: 20px; border-radius: 8px; border: 1px solid #ffcdd2; margin: 20px 0;">
    <h2 style="margin: 0 0 10px 0;">{{.Name}}</h2>
    <p style="font-size: 1.2em; margin: 0;">Current Stock: <strong style="color: #d32f2f;">{{.Stock}}</strong></p>
  </div>

  <p>Time to restock before it sells out!</p>
</div>`))

// ReceiptHTML renders the customer order confirmation email.
func ReceiptHTML(data ReceiptData) (string, error) {
	var b strings.Builder
	view := struct {
		ReceiptData
		TaxRate string
	}{ReceiptData: data, TaxRate: taxRatePercent(data.TaxRateBps)}
	if err := receiptTmpl.Execute(&b, view); err != nil {
		return "", fmt.Errorf("emails: render receipt: %w", err)
	}
	return b.String(), nil
}

// PackingSlipHTML renders the seller copy of a settled order.
func PackingSlipHTML(data ReceiptData) (string, error) {
	var b strings.Builder
	if err := packingSlipTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("emails: render packing slip: %w", err)
	}
	return b.String(), nil
}

// LowStockHTML renders the seller inventory alert.
func LowStockHTML(productName string, stock int) (string, error) {
	var b strings.Builder
	if err := lowStockTmpl.Execute(&b, struct {
		Name  string
		Stock int
	}{Name: productName, Stock: stock}); err != nil {
		return "", fmt.Errorf("emails: render low stock alert: %w", err)
	}
	return b.String(), nil
}
