package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components. Prices are VAT-inclusive;
// Tax is the portion of Total already contained in it, Net the remainder.
type Summary struct {
	Subtotal Money
	Discount Money
	Shipping Money
	Net      Money
	Tax      Money
	Total    Money
}

// Compute calculates cart totals given the provided inputs. The tax rate is
// expressed in basis points and is divided out of the gross total rather than
// added on top.
func Compute(items []Item, discount Money, taxBps int, shipping Money) Summary {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	if shipping < 0 {
		shipping = 0
	}
	total := subtotal - discount + shipping
	breakdown := ExtractTax(total, taxBps)
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Net:      breakdown.Net,
		Tax:      breakdown.Tax,
		Total:    total,
	}
}
