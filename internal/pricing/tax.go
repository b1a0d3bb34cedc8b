package pricing

// DefaultTaxRateBps is the standard VAT rate applied to gross prices, in
// basis points (600 = 6%).
const DefaultTaxRateBps = 600

// TaxBreakdown decomposes a VAT-inclusive total into its net and tax parts.
// Net + Tax always equals Total.
type TaxBreakdown struct {
	Total Money `json:"totalCents"`
	Net   Money `json:"netCents"`
	Tax   Money `json:"taxCents"`
}

// ExtractTax divides the VAT portion out of a gross total. The net amount is
// rounded once (half up) and the tax derived as the remainder so the two
// components always sum back to the total.
func ExtractTax(total Money, rateBps int) TaxBreakdown {
	if total <= 0 || rateBps <= 0 {
		return TaxBreakdown{Total: total, Net: total}
	}
	denom := Money(10000 + rateBps)
	net := (total*10000 + denom/2) / denom
	return TaxBreakdown{Total: total, Net: net, Tax: total - net}
}

// TaxFromTotal returns only the VAT portion contained in a gross total.
func TaxFromTotal(total Money, rateBps int) Money {
	return ExtractTax(total, rateBps).Tax
}

// NetFromTotal returns the gross total with the VAT portion divided out.
func NetFromTotal(total Money, rateBps int) Money {
	return ExtractTax(total, rateBps).Net
}
