package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Rate zones known to the default table.
const (
	ZoneDEU     = "DEU"
	ZoneEU1     = "EU1"
	ZoneDefault = "DEFAULT"
)

// Rate defines the shipping price for one zone.
type Rate struct {
	Label                      string `json:"label"`
	BasePriceCents             Money  `json:"basePriceCents"`
	PerKgCents                 Money  `json:"perKgCents"`
	FreeShippingThresholdCents Money  `json:"freeShippingThresholdCents,omitempty"`
}

// RateTable maps destination countries to rate zones and zones to rates.
// Tables are built at startup and never mutated afterwards.
type RateTable struct {
	// ZonePriority lists zones in classification order; the first zone
	// whose member list contains the country code wins.
	ZonePriority []string            `json:"zonePriority"`
	ZoneMembers  map[string][]string `json:"zones"`
	Rates        map[string]Rate     `json:"rates"`
}

// DefaultRateTable returns the production shipping rates: national (DEU),
// EU Zone 1 and rest-of-world.
func DefaultRateTable() RateTable {
	return RateTable{
		ZonePriority: []string{ZoneDEU, ZoneEU1},
		ZoneMembers: map[string][]string{
			ZoneDEU: {"DEU", "DE"},
			ZoneEU1: {"AUT", "BEL", "CZE", "DNK", "FRA", "LUX", "NLD", "POL"},
		},
		Rates: map[string]Rate{
			ZoneDEU: {
				Label:                      "Germany (National)",
				BasePriceCents:             590,
				PerKgCents:                 0,
				FreeShippingThresholdCents: 5000,
			},
			ZoneEU1: {
				Label:          "EU Zone 1",
				BasePriceCents: 1290,
				PerKgCents:     0,
			},
			ZoneDefault: {
				Label:          "International Shipping",
				BasePriceCents: 1990,
				PerKgCents:     200,
			},
		},
	}
}

// LoadRateTable reads a rate table override from a JSON file. An empty path
// returns the default table. The loaded table is validated before use.
func LoadRateTable(path string) (RateTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRateTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RateTable{}, fmt.Errorf("read rate table: %w", err)
	}
	var table RateTable
	if err := json.Unmarshal(data, &table); err != nil {
		return RateTable{}, fmt.Errorf("parse rate table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return RateTable{}, err
	}
	return table, nil
}

// Validate ensures the table can classify every destination: the DEFAULT
// rate must exist and every zone in the priority chain must have both
// members and a configured rate.
func (t RateTable) Validate() error {
	if _, ok := t.Rates[ZoneDefault]; !ok {
		return fmt.Errorf("rate table: %s rate is required", ZoneDefault)
	}
	for _, zone := range t.ZonePriority {
		if len(t.ZoneMembers[zone]) == 0 {
			return fmt.Errorf("rate table: zone %s has no member countries", zone)
		}
		if _, ok := t.Rates[zone]; !ok {
			return fmt.Errorf("rate table: zone %s has no rate", zone)
		}
	}
	return nil
}

// Zone classifies an ISO-3166 country code (alpha-2 or alpha-3) into a rate
// zone. The mapping is total: unrecognised codes fall through to DEFAULT.
func (t RateTable) Zone(countryCode string) string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	for _, zone := range t.ZonePriority {
		for _, member := range t.ZoneMembers[zone] {
			if code == member {
				return zone
			}
		}
	}
	return ZoneDefault
}

// RateFor returns the rate record for the zone serving the given country.
func (t RateTable) RateFor(countryCode string) (string, Rate) {
	zone := t.Zone(countryCode)
	rate, ok := t.Rates[zone]
	if !ok {
		return ZoneDefault, t.Rates[ZoneDefault]
	}
	return zone, rate
}

// Cost computes the shipping price in cents for a destination, package
// weight and order subtotal. Partial kilograms are billed as full kilograms.
// Unrecognised destinations are priced at the DEFAULT (highest) rate rather
// than shipping free.
func (t RateTable) Cost(countryCode string, weightKg float64, subtotal Money) Money {
	_, rate := t.RateFor(countryCode)
	if rate.FreeShippingThresholdCents > 0 && subtotal >= rate.FreeShippingThresholdCents {
		return 0
	}
	if weightKg < 0 {
		weightKg = 0
	}
	return rate.BasePriceCents + Money(math.Ceil(weightKg))*rate.PerKgCents
}
