package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/pricing"
)

func TestExtractTaxStandardRate(t *testing.T) {
	t.Parallel()

	b := pricing.ExtractTax(1000, 600)
	require.EqualValues(t, 943, b.Net)
	require.EqualValues(t, 57, b.Tax)
	require.EqualValues(t, 1000, b.Total)

	require.EqualValues(t, 57, pricing.TaxFromTotal(1000, 600))
	require.EqualValues(t, 943, pricing.NetFromTotal(1000, 600))
}

func TestExtractTaxComponentsAlwaysSum(t *testing.T) {
	t.Parallel()

	rates := []int{1, 600, 700, 1900, 2100, 9999}
	for _, bps := range rates {
		for total := pricing.Money(0); total <= 25_000; total += 137 {
			b := pricing.ExtractTax(total, bps)
			require.Equal(t, total, b.Net+b.Tax, "total=%d bps=%d", total, bps)
			require.GreaterOrEqual(t, b.Tax, pricing.Money(0))
			require.GreaterOrEqual(t, b.Net, pricing.Money(0))
		}
	}
}

func TestExtractTaxZeroAndNegativeInputs(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 0, pricing.TaxFromTotal(0, 600))
	require.EqualValues(t, 0, pricing.TaxFromTotal(1000, 0))
	b := pricing.ExtractTax(500, -5)
	require.EqualValues(t, 500, b.Net)
	require.EqualValues(t, 0, b.Tax)
}
