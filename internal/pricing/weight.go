package pricing

import (
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// Product categories used by the weight estimator. Catalog rows may carry an
// explicit category; free-text classification is the fallback for line items
// that predate the tagged attribute.
const (
	CategoryBottle  = "bottle"
	CategoryTShirt  = "tshirt"
	CategoryHoodie  = "hoodie"
	CategoryUnknown = "unknown"
)

// MinPackageWeightKg is the carrier-imposed minimum shippable weight.
const MinPackageWeightKg = 0.01

// LineItem is the weight estimator's view of a cart row.
type LineItem struct {
	Name         string
	Qty          int
	Category     string
	CapacityMl   *int
	SelectedSize *string
	WeightGrams  *int
}

// WeightConfig holds the static packaging and per-product weights in grams.
type WeightConfig struct {
	BoxGrams       int         `json:"boxGrams"`
	BottleGrams    map[int]int `json:"bottleGrams"`
	TShirtGrams    int         `json:"tshirtGrams"`
	HoodieGrams    int         `json:"hoodieGrams"`
	HoodieXXLGrams int         `json:"hoodieXxlGrams"`
}

// DefaultWeightConfig returns the packaging weights used in production.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		BoxGrams: 100,
		BottleGrams: map[int]int{
			100: 280,
			200: 450,
		},
		TShirtGrams:    250,
		HoodieGrams:    800,
		HoodieXXLGrams: 1000,
	}
}

// Estimator converts cart line items into a total package weight.
type Estimator struct {
	Config WeightConfig
	Logger zerolog.Logger
}

// NewEstimator builds an estimator with the provided config, falling back to
// the defaults when the config carries no bottle table.
func NewEstimator(cfg WeightConfig, logger zerolog.Logger) Estimator {
	if len(cfg.BottleGrams) == 0 {
		cfg = DefaultWeightConfig()
	}
	return Estimator{Config: cfg, Logger: logger}
}

// Classify determines the product category of a line item. An explicit
// category tag wins; otherwise the display name is matched against known
// keywords in priority order.
func Classify(item LineItem) string {
	switch strings.ToLower(strings.TrimSpace(item.Category)) {
	case CategoryBottle, "sauce":
		return CategoryBottle
	case CategoryTShirt, "t-shirt", "shirt":
		return CategoryTShirt
	case CategoryHoodie, "hoody":
		return CategoryHoodie
	}
	name := strings.ToLower(item.Name)
	if strings.Contains(name, "hoodie") || strings.Contains(name, "hoody") {
		return CategoryHoodie
	}
	if strings.Contains(name, "t-shirt") || strings.Contains(name, "tshirt") || strings.Contains(name, "tee") {
		return CategoryTShirt
	}
	// The main product line: anything sauce-adjacent ships in a bottle.
	if strings.Contains(name, "sauce") || strings.Contains(name, "hot") ||
		strings.Contains(name, "chili") || strings.Contains(name, "chilli") {
		return CategoryBottle
	}
	return CategoryUnknown
}

// UnitWeightGrams returns the weight of a single unit of the line item.
// Unknown or incomplete data degrades to a conservative default; the
// estimator never fails.
func (e Estimator) UnitWeightGrams(item LineItem) int {
	if item.WeightGrams != nil && *item.WeightGrams > 0 {
		return *item.WeightGrams
	}
	switch Classify(item) {
	case CategoryBottle:
		return e.bottleWeight(item.CapacityMl)
	case CategoryTShirt:
		return e.Config.TShirtGrams
	case CategoryHoodie:
		if item.SelectedSize != nil {
			switch strings.ToUpper(strings.TrimSpace(*item.SelectedSize)) {
			case "2XL", "XXL":
				return e.Config.HoodieXXLGrams
			}
		}
		return e.Config.HoodieGrams
	default:
		e.Logger.Warn().Str("product", item.Name).Msg("unknown product type, using default weight")
		return e.bottleWeight(nil)
	}
}

// PackageWeightKg estimates the total shippable weight for an order in
// kilograms: empty box plus every unit, rounded to two decimals and clamped
// to the carrier minimum.
func (e Estimator) PackageWeightKg(items []LineItem) float64 {
	totalGrams := e.Config.BoxGrams
	for _, item := range items {
		if item.Qty <= 0 {
			continue
		}
		totalGrams += e.UnitWeightGrams(item) * item.Qty
	}
	weightKg := math.Round(float64(totalGrams)/10) / 100
	return math.Max(MinPackageWeightKg, weightKg)
}

func (e Estimator) bottleWeight(capacityMl *int) int {
	if capacityMl != nil {
		if grams, ok := e.Config.BottleGrams[*capacityMl]; ok {
			return grams
		}
	}
	// Smallest bottle is the conservative default for missing or
	// unrecognised capacities.
	smallest := 0
	grams := 0
	for capacity, g := range e.Config.BottleGrams {
		if smallest == 0 || capacity < smallest {
			smallest = capacity
			grams = g
		}
	}
	return grams
}
