package analytics

// OpportunityTemplate describes a known reduction lever for an emission category.
type OpportunityTemplate struct {
	Recommendation     string  `yaml:"recommendation"`
	Effort             string  `yaml:"effort"`
	Impact             string  `yaml:"impact"`
	ReductionFraction  float64 `yaml:"reduction_fraction"`
	ImplementationCost float64 `yaml:"implementation_cost"`
	ROI                float64 `yaml:"roi"`
}

// Tables holds the heuristic constants behind the analytics views.
// A zero field falls back to the built-in value.
type Tables struct {
	SectorAverages       map[string]float64             `yaml:"sector_averages"`
	Opportunities        map[string]OpportunityTemplate `yaml:"opportunities"`
	DefaultSectorAverage float64                        `yaml:"default_sector_average"`
	MaterialityThreshold float64                        `yaml:"materiality_threshold"`
	CarbonPrice          float64                        `yaml:"carbon_price"`
}

// Built-in heuristic values.
const (
	DefaultSectorAverage = 0.25
	DefaultMateriality   = 100.0
	DefaultCarbonPrice   = 85.0
	DefaultTrendPeriods  = 12
)

// DefaultTables returns the built-in sector averages and reduction templates.
func DefaultTables() Tables {
	return Tables{
		SectorAverages: map[string]float64{
			"manufacturing":  0.45,
			"technology":     0.12,
			"retail":         0.18,
			"finance":        0.08,
			"healthcare":     0.22,
			"construction":   0.65,
			"transportation": 0.85,
			"energy":         1.20,
			"agriculture":    0.55,
			"hospitality":    0.35,
		},
		Opportunities: map[string]OpportunityTemplate{
			"Fuel and Energy": {
				ReductionFraction:  0.3,
				ImplementationCost: 5000,
				ROI:                2.5,
				Effort:             "medium",
				Impact:             "high",
				Recommendation:     "Switch to electric vehicles and optimize route planning",
			},
			"Energy": {
				ReductionFraction:  0.4,
				ImplementationCost: 3000,
				ROI:                3.2,
				Effort:             "low",
				Impact:             "high",
				Recommendation:     "Switch to renewable energy supplier and improve energy efficiency",
			},
			"Business Travel": {
				ReductionFraction:  0.5,
				ImplementationCost: 1000,
				ROI:                4.1,
				Effort:             "low",
				Impact:             "medium",
				Recommendation:     "Implement virtual meeting policy and carbon-conscious travel booking",
			},
		},
		DefaultSectorAverage: DefaultSectorAverage,
		MaterialityThreshold: DefaultMateriality,
		CarbonPrice:          DefaultCarbonPrice,
	}
}

// WithDefaults fills unset fields from DefaultTables. Maps provided by the
// caller replace the built-in maps entirely.
func (t Tables) WithDefaults() Tables {
	d := DefaultTables()
	if t.SectorAverages == nil {
		t.SectorAverages = d.SectorAverages
	}
	if t.Opportunities == nil {
		t.Opportunities = d.Opportunities
	}
	if t.DefaultSectorAverage <= 0 {
		t.DefaultSectorAverage = d.DefaultSectorAverage
	}
	if t.MaterialityThreshold <= 0 {
		t.MaterialityThreshold = d.MaterialityThreshold
	}
	if t.CarbonPrice <= 0 {
		t.CarbonPrice = d.CarbonPrice
	}
	return t
}
