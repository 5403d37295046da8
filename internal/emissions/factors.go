// Package emissions resolves emission factors and converts spend into kg CO2e.
package emissions

import (
	"sort"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// Factor sources and years.
const (
	SeedSource    = "DEFRA 2024"
	DefaultSource = "Default factor table 2024"
	GenericSource = "Generic estimate"
	ErrorSource   = "Fallback estimate"
	DefaultYear   = 2024

	SpendUnit = "kg CO2e per €"
)

// DefaultFactor is one entry of the built-in factor table.
type DefaultFactor struct {
	Unit   string
	Factor float64
	Scope  model.Scope
}

// DefaultFactors is the built-in DEFRA 2024 table keyed by category_subcategory.
var DefaultFactors = map[string]DefaultFactor{
	"fuel_diesel":          {Factor: 2.687, Unit: "kg CO2e per litre", Scope: model.Scope1},
	"fuel_petrol":          {Factor: 2.315, Unit: "kg CO2e per litre", Scope: model.Scope1},
	"electricity_uk":       {Factor: 0.193, Unit: "kg CO2e per kWh", Scope: model.Scope2},
	"natural_gas":          {Factor: 0.184, Unit: "kg CO2e per kWh", Scope: model.Scope2},
	"flight_domestic":      {Factor: 0.255, Unit: "kg CO2e per km", Scope: model.Scope3},
	"flight_international": {Factor: 0.195, Unit: "kg CO2e per km", Scope: model.Scope3},
	"hotel_night":          {Factor: 24.3, Unit: "kg CO2e per night", Scope: model.Scope3},
	"taxi_km":              {Factor: 0.211, Unit: "kg CO2e per km", Scope: model.Scope3},
	"office_supplies":      {Factor: 0.5, Unit: SpendUnit, Scope: model.Scope3},
	"consulting_services":  {Factor: 0.1, Unit: SpendUnit, Scope: model.Scope3},
	"waste_general":        {Factor: 0.475, Unit: "kg CO2e per kg", Scope: model.Scope3},
}

// FallbackKey is used when no keyword selects a table entry.
const FallbackKey = "office_supplies"

// DefaultFactorKey selects a table entry from category and subcategory keywords.
func DefaultFactorKey(category, subcategory string) string {
	cat := strings.ToLower(category)
	sub := strings.ToLower(subcategory)

	switch {
	case containsAny(cat, "fuel", "transport"):
		if containsAny(sub, "petrol", "gasoline") {
			return "fuel_petrol"
		}
		return "fuel_diesel"
	case containsAny(cat, "electricity", "energy"):
		if containsAny(sub, "gas") {
			return "natural_gas"
		}
		return "electricity_uk"
	case containsAny(cat, "hotel", "accommodation") || containsAny(sub, "hotel", "accommodation"):
		return "hotel_night"
	case containsAny(cat, "taxi", "uber") || containsAny(sub, "taxi", "uber", "ground"):
		return "taxi_km"
	case containsAny(cat, "travel", "flight"):
		if containsAny(sub, "domestic") {
			return "flight_domestic"
		}
		return "flight_international"
	case containsAny(cat, "office", "supplies"):
		return "office_supplies"
	case containsAny(cat, "consulting", "services"):
		return "consulting_services"
	case containsAny(cat, "waste"):
		return "waste_general"
	}
	return FallbackKey
}

// GenericFactor is the spend-based factor used when nothing else resolves.
func GenericFactor(scope model.Scope) float64 {
	switch scope {
	case model.Scope1:
		return 0.3
	case model.Scope2:
		return 0.2
	case model.Scope3:
		return 0.15
	default:
		return 0.2
	}
}

// GradeSource maps a factor source onto a confidence level.
func GradeSource(source string) model.FactorConfidence {
	switch {
	case containsAny(source, "DEFRA", "Climatiq", "EPA", "ADEME"):
		return model.ConfidenceHigh
	case strings.Contains(source, "Default"):
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// SeedFactors expands the default table into catalogue rows, split on the key's underscore.
func SeedFactors() []model.EmissionFactor {
	keys := make([]string, 0, len(DefaultFactors))
	for k := range DefaultFactors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	factors := make([]model.EmissionFactor, 0, len(keys))
	for _, key := range keys {
		d := DefaultFactors[key]
		category, subcategory, _ := strings.Cut(key, "_")
		factors = append(factors, model.EmissionFactor{
			Category:    capitalize(category),
			Subcategory: capitalize(subcategory),
			Scope:       d.Scope,
			Factor:      d.Factor,
			Unit:        d.Unit,
			Source:      SeedSource,
			Year:        DefaultYear,
			Description: "Default " + category + " emission factor",
		})
	}
	return factors
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
