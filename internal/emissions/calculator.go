package emissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// FactorStore is the subset of storage the calculator needs.
type FactorStore interface {
	CountEmissionFactors(ctx context.Context) (int, error)
	GetEmissionFactor(ctx context.Context, category, subcategory string) (*model.EmissionFactor, error)
	CreateEmissionFactor(ctx context.Context, factor *model.EmissionFactor) error
	GetOrCreateEmissionFactor(ctx context.Context, factor *model.EmissionFactor) (*model.EmissionFactor, error)
}

// Resolution paths, in lookup order.
const (
	PathStored   = "stored"
	PathDefault  = "default"
	PathGeneric  = "generic"
	PathFallback = "fallback"
)

// Conversion holds the average prices used to turn spend into activity quantities.
type Conversion struct {
	FuelPerLitre  float64 `yaml:"fuel" mapstructure:"fuel"`
	EnergyPerKWh  float64 `yaml:"energy" mapstructure:"energy"`
	HotelPerNight float64 `yaml:"hotel" mapstructure:"hotel"`
	TravelPerKm   float64 `yaml:"travel" mapstructure:"travel"`
}

// DefaultConversion returns the built-in average prices in EUR.
func DefaultConversion() Conversion {
	return Conversion{
		FuelPerLitre:  1.5,
		EnergyPerKWh:  0.25,
		HotelPerNight: 100,
		TravelPerKm:   0.5,
	}
}

// WithDefaults replaces non-positive ratios with the built-in ones.
func (c Conversion) WithDefaults() Conversion {
	d := DefaultConversion()
	if c.FuelPerLitre <= 0 {
		c.FuelPerLitre = d.FuelPerLitre
	}
	if c.EnergyPerKWh <= 0 {
		c.EnergyPerKWh = d.EnergyPerKWh
	}
	if c.HotelPerNight <= 0 {
		c.HotelPerNight = d.HotelPerNight
	}
	if c.TravelPerKm <= 0 {
		c.TravelPerKm = d.TravelPerKm
	}
	return c
}

// Activity converts a spend amount into an activity quantity and its unit.
// Unmatched categories are priced directly on spend.
func (c Conversion) Activity(category, subcategory string, amount float64) (float64, string) {
	text := strings.ToLower(category + " " + subcategory)
	switch {
	case strings.Contains(text, "fuel"):
		return amount / c.FuelPerLitre, "litres"
	case containsAny(text, "electricity", "energy"):
		return amount / c.EnergyPerKWh, "kWh"
	case containsAny(text, "hotel", "accommodation"):
		return amount / c.HotelPerNight, "nights"
	case containsAny(text, "travel", "flight"):
		return amount / c.TravelPerKm, "km"
	}
	return amount, "EUR"
}

// Calculation is the priced outcome for one expense.
type Calculation struct {
	Unit             string                 `json:"unit"`
	Source           string                 `json:"source"`
	Confidence       model.FactorConfidence `json:"confidence"`
	Path             string                 `json:"path"`
	ActivityUnit     string                 `json:"activityUnit"`
	CO2Emissions     float64                `json:"co2Emissions"`
	EmissionsFactor  float64                `json:"emissionsFactor"`
	ActivityQuantity float64                `json:"activityQuantity"`
}

// Calculator resolves factors and computes emissions. Calculate never fails.
type Calculator struct {
	store      FactorStore
	defaults   map[string]DefaultFactor
	conversion Conversion
	logger     *slog.Logger

	seedMu sync.Mutex
	seeded bool
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithConversion overrides the spend conversion ratios.
func WithConversion(c Conversion) Option {
	return func(calc *Calculator) {
		calc.conversion = c.WithDefaults()
	}
}

// WithDefaultFactors replaces the built-in default table.
func WithDefaultFactors(defaults map[string]DefaultFactor) Option {
	return func(calc *Calculator) {
		calc.defaults = defaults
	}
}

// WithLogger sets the calculator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(calc *Calculator) {
		calc.logger = logger
	}
}

// NewCalculator creates a calculator backed by store.
func NewCalculator(store FactorStore, opts ...Option) *Calculator {
	c := &Calculator{
		store:      store,
		defaults:   DefaultFactors,
		conversion: DefaultConversion(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate prices one expense. Lookup order is the stored factor for the exact
// category and subcategory, then the default table (persisted on first use), then
// a generic spend factor for the scope.
func (c *Calculator) Calculate(ctx context.Context, category, subcategory string, amount float64, scope model.Scope) Calculation {
	calc, err := c.calculate(ctx, category, subcategory, amount, scope)
	if err != nil {
		c.logger.Warn("emission factor resolution failed, using fallback estimate",
			"category", category,
			"subcategory", subcategory,
			"error", err)
		return genericCalculation(amount, scope, ErrorSource, PathFallback)
	}
	return calc
}

func (c *Calculator) calculate(ctx context.Context, category, subcategory string, amount float64, scope model.Scope) (Calculation, error) {
	if strings.TrimSpace(category) == "" {
		return genericCalculation(amount, scope, GenericSource, PathGeneric), nil
	}

	factor, err := c.store.GetEmissionFactor(ctx, category, subcategory)
	path := PathStored
	if errors.Is(err, common.ErrNotFound) {
		path = PathDefault
		factor, err = c.defaultFactor(ctx, category, subcategory)
	}
	if err != nil {
		return Calculation{}, err
	}
	if factor == nil {
		return genericCalculation(amount, scope, GenericSource, PathGeneric), nil
	}

	quantity, activityUnit := c.conversion.Activity(category, subcategory, amount)
	return Calculation{
		CO2Emissions:     quantity * factor.Factor,
		EmissionsFactor:  factor.Factor,
		Unit:             factor.Unit,
		Source:           factor.Source,
		Confidence:       GradeSource(factor.Source),
		Path:             path,
		ActivityQuantity: quantity,
		ActivityUnit:     activityUnit,
	}, nil
}

// defaultFactor persists the default table entry for a category. It returns nil
// when the table has no entry for the selected key.
func (c *Calculator) defaultFactor(ctx context.Context, category, subcategory string) (*model.EmissionFactor, error) {
	key := DefaultFactorKey(category, subcategory)
	d, ok := c.defaults[key]
	if !ok {
		return nil, nil
	}

	description := "Default factor for " + category
	if subcategory != "" {
		description += " - " + subcategory
	}

	factor, err := c.store.GetOrCreateEmissionFactor(ctx, &model.EmissionFactor{
		Category:    category,
		Subcategory: subcategory,
		Scope:       d.Scope,
		Factor:      d.Factor,
		Unit:        d.Unit,
		Source:      DefaultSource,
		Year:        DefaultYear,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist default factor %s: %w", key, err)
	}
	return factor, nil
}

func genericCalculation(amount float64, scope model.Scope, source, path string) Calculation {
	factor := GenericFactor(scope)
	return Calculation{
		CO2Emissions:     amount * factor,
		EmissionsFactor:  factor,
		Unit:             SpendUnit,
		Source:           source,
		Confidence:       model.ConfidenceLow,
		Path:             path,
		ActivityQuantity: amount,
		ActivityUnit:     "EUR",
	}
}

// SeedDefaults loads the default table into an empty catalogue. It runs at most
// once per Calculator and returns the number of factors created.
func (c *Calculator) SeedDefaults(ctx context.Context) (int, error) {
	c.seedMu.Lock()
	defer c.seedMu.Unlock()

	if c.seeded {
		return 0, nil
	}

	count, err := c.store.CountEmissionFactors(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count emission factors: %w", err)
	}
	if count > 0 {
		c.seeded = true
		return 0, nil
	}

	created := 0
	for _, factor := range SeedFactors() {
		err := c.store.CreateEmissionFactor(ctx, &factor)
		if errors.Is(err, common.ErrDuplicateEntry) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to seed factor %s/%s: %w", factor.Category, factor.Subcategory, err)
		}
		created++
	}

	c.seeded = true
	c.logger.Info("Seeded default emission factors", "count", created)
	return created, nil
}
