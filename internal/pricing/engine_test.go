package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/pricing"
)

func TestComputeVATInclusiveTotals(t *testing.T) {
	t.Parallel()

	items := []pricing.Item{
		{Qty: 2, UnitPrice: 899},
		{Qty: 1, UnitPrice: 1299},
	}
	summary := pricing.Compute(items, 0, 600, 590)
	require.EqualValues(t, 3097, summary.Subtotal)
	require.EqualValues(t, 590, summary.Shipping)
	require.EqualValues(t, 3687, summary.Total)
	require.Equal(t, summary.Total, summary.Net+summary.Tax)
}

func TestComputeClampsDiscount(t *testing.T) {
	t.Parallel()

	items := []pricing.Item{{Qty: 1, UnitPrice: 500}}
	summary := pricing.Compute(items, 900, 600, 0)
	require.EqualValues(t, 500, summary.Discount)
	require.EqualValues(t, 0, summary.Total)
}

func TestComputeSkipsNonPositiveQuantities(t *testing.T) {
	t.Parallel()

	items := []pricing.Item{
		{Qty: 0, UnitPrice: 500},
		{Qty: -2, UnitPrice: 500},
		{Qty: 3, UnitPrice: 100},
	}
	summary := pricing.Compute(items, 0, 600, 0)
	require.EqualValues(t, 300, summary.Subtotal)
}
