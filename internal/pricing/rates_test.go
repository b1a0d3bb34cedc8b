package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/pricing"
)

func TestZoneClassification(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultRateTable()
	require.Equal(t, pricing.ZoneDEU, table.Zone("DEU"))
	require.Equal(t, pricing.ZoneDEU, table.Zone("de"))
	require.Equal(t, pricing.ZoneEU1, table.Zone("FRA"))
	require.Equal(t, pricing.ZoneEU1, table.Zone("nld"))
	require.Equal(t, pricing.ZoneDefault, table.Zone("USA"))
	require.Equal(t, pricing.ZoneDefault, table.Zone(""))
}

func TestCostFreeShippingThreshold(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultRateTable()
	require.EqualValues(t, 0, table.Cost("DEU", 2.3, 5500))
	require.EqualValues(t, 0, table.Cost("DEU", 2.3, 5000))
	require.EqualValues(t, 590, table.Cost("DEU", 2.3, 4999))
}

func TestCostNationalBelowThreshold(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultRateTable()
	// Germany charges a flat base price, no per-kg component.
	require.EqualValues(t, 590, table.Cost("DEU", 2.3, 100))
}

func TestCostEUZoneIgnoresWeight(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultRateTable()
	require.EqualValues(t, 1290, table.Cost("FRA", 3.1, 0))
	require.EqualValues(t, 1290, table.Cost("FRA", 0.2, 0))
}

func TestCostDefaultZoneBillsFullKilograms(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultRateTable()
	// 1990 + ceil(1.0)*200
	require.EqualValues(t, 2190, table.Cost("XYZ", 1.0, 0))
	// Partial kilograms round up before multiplying.
	require.EqualValues(t, 2390, table.Cost("USA", 1.2, 0))
	require.EqualValues(t, 1990, table.Cost("USA", 0, 0))
}

func TestValidateRejectsMissingDefault(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultRateTable()
	delete(table.Rates, pricing.ZoneDefault)
	require.Error(t, table.Validate())
}

func TestValidateRejectsUnconfiguredZone(t *testing.T) {
	t.Parallel()

	table := pricing.DefaultRateTable()
	table.ZonePriority = append(table.ZonePriority, "EU2")
	require.Error(t, table.Validate())

	table.ZoneMembers["EU2"] = []string{"ESP", "ITA"}
	require.Error(t, table.Validate())

	table.Rates["EU2"] = pricing.Rate{Label: "EU Zone 2", BasePriceCents: 1590}
	require.NoError(t, table.Validate())
}

func TestLoadRateTableOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rates.json")
	payload := `{
		"zonePriority": ["BEL"],
		"zones": {"BEL": ["BEL", "BE"]},
		"rates": {
			"BEL": {"label": "Belgium (National)", "basePriceCents": 490, "freeShippingThresholdCents": 4000},
			"DEFAULT": {"label": "International", "basePriceCents": 2490, "perKgCents": 300}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	table, err := pricing.LoadRateTable(path)
	require.NoError(t, err)
	require.EqualValues(t, 0, table.Cost("BE", 1.0, 4500))
	require.EqualValues(t, 490, table.Cost("BEL", 1.0, 100))
	require.EqualValues(t, 2790, table.Cost("DEU", 0.5, 0))
}

func TestLoadRateTableEmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	table, err := pricing.LoadRateTable("")
	require.NoError(t, err)
	require.NoError(t, table.Validate())
	require.EqualValues(t, 590, table.Cost("DEU", 1.0, 0))
}
