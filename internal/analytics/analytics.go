// Package analytics derives emission summaries, trends, budgets, benchmarks and
// reduction opportunities from ledger transactions. Every view is recomputed
// from the rows passed in; nothing is cached between calls.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// IntensityUnit is the unit of carbon intensity figures.
const IntensityUnit = "kg CO2e/EUR"

// StableBand is the absolute percentage change below which a trend is stable.
const StableBand = 5.0

// Direction is the movement of emissions between two periods.
type Direction string

// Trend directions.
const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// Performance grades a company against its sector average.
type Performance string

// Benchmark grades.
const (
	AboveAverage Performance = "above_average"
	Average      Performance = "average"
	BelowAverage Performance = "below_average"
)

// CategoryTotal aggregates the emissions of one category.
type CategoryTotal struct {
	Category  string      `json:"category"`
	Emissions float64     `json:"emissions"`
	Amount    float64     `json:"amount"`
	Count     int         `json:"count"`
	Scope     model.Scope `json:"scope"`
}

// Summary totals a set of ledger rows by scope and category.
type Summary struct {
	ByCategory []CategoryTotal `json:"byCategory"`
	Total      float64         `json:"totalEmissions"`
	Scope1     float64         `json:"scope1Emissions"`
	Scope2     float64         `json:"scope2Emissions"`
	Scope3     float64         `json:"scope3Emissions"`
	Count      int             `json:"transactionCount"`
	Verified   int             `json:"verifiedCount"`
}

// ScopeTotal returns the emissions of one scope.
func (s Summary) ScopeTotal(scope model.Scope) float64 {
	switch scope {
	case model.Scope1:
		return s.Scope1
	case model.Scope2:
		return s.Scope2
	case model.Scope3:
		return s.Scope3
	}
	return 0
}

// ScopePercent returns the share of one scope in the total, in percent.
func (s Summary) ScopePercent(scope model.Scope) float64 {
	if s.Total <= 0 {
		return 0
	}
	return s.ScopeTotal(scope) / s.Total * 100
}

// Summarize totals rows. Categories are ordered by emissions, largest first.
func Summarize(txns []model.LedgerTransaction) Summary {
	var s Summary
	byCategory := make(map[string]*CategoryTotal)

	for i := range txns {
		t := &txns[i]
		s.Total += t.CO2Emissions
		s.Count++
		if t.Verified {
			s.Verified++
		}
		switch t.Scope {
		case model.Scope1:
			s.Scope1 += t.CO2Emissions
		case model.Scope2:
			s.Scope2 += t.CO2Emissions
		case model.Scope3:
			s.Scope3 += t.CO2Emissions
		}

		name := categoryName(t.Category)
		ct, ok := byCategory[name]
		if !ok {
			ct = &CategoryTotal{Category: name, Scope: t.Scope}
			byCategory[name] = ct
		}
		ct.Emissions += t.CO2Emissions
		ct.Amount += t.Amount
		ct.Count++
	}

	s.ByCategory = make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		s.ByCategory = append(s.ByCategory, *ct)
	}
	sortCategories(s.ByCategory)
	return s
}

func categoryName(category string) string {
	if strings.TrimSpace(category) == "" {
		return "Unknown"
	}
	return category
}

func sortCategories(cats []CategoryTotal) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Emissions != cats[j].Emissions {
			return cats[i].Emissions > cats[j].Emissions
		}
		return cats[i].Category < cats[j].Category
	})
}

// TrendPoint is one monthly bucket of a trend.
type TrendPoint struct {
	Period           string    `json:"period"`
	Direction        Direction `json:"trend"`
	Emissions        float64   `json:"emissions"`
	PercentageChange float64   `json:"percentageChange"`
}

// ClassifyChange maps a percentage change onto a direction. A change of
// exactly StableBand is not stable.
func ClassifyChange(change float64) Direction {
	switch {
	case math.Abs(change) < StableBand:
		return Stable
	case change > 0:
		return Increasing
	default:
		return Decreasing
	}
}

// PercentChange returns the change from prev to cur in percent, or 0 when
// prev is not positive.
func PercentChange(prev, cur float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// Trends buckets rows into the periods calendar months ending with the month
// of end, oldest first. The oldest bucket has no predecessor and is stable.
func Trends(txns []model.LedgerTransaction, end time.Time, periods int) []TrendPoint {
	if periods <= 0 {
		periods = DefaultTrendPeriods
	}

	last := monthStart(end)
	points := make([]TrendPoint, periods)
	index := make(map[string]int, periods)
	for i := range points {
		month := last.AddDate(0, i-periods+1, 0)
		points[i].Period = month.Format("2006-01")
		index[points[i].Period] = i
	}

	for i := range txns {
		if idx, ok := index[txns[i].Date.UTC().Format("2006-01")]; ok {
			points[idx].Emissions += txns[i].CO2Emissions
		}
	}

	for i := range points {
		if i > 0 {
			points[i].PercentageChange = PercentChange(points[i-1].Emissions, points[i].Emissions)
		}
		points[i].Direction = ClassifyChange(points[i].PercentageChange)
	}
	return points
}

// TrendStart is the first instant covered by Trends(_, end, periods).
func TrendStart(end time.Time, periods int) time.Time {
	if periods <= 0 {
		periods = DefaultTrendPeriods
	}
	return monthStart(end).AddDate(0, 1-periods, 0)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Budget tracks year-to-date emissions against an annual target.
type Budget struct {
	AnnualTarget     float64 `json:"annualTarget"`
	CurrentEmissions float64 `json:"currentEmissions"`
	RemainingBudget  float64 `json:"remainingBudget"`
	ProjectedAnnual  float64 `json:"projectedAnnual"`
	DaysElapsed      int     `json:"daysElapsed"`
	DaysRemaining    int     `json:"daysRemaining"`
	OnTrack          bool    `json:"onTrack"`
}

// CarbonBudget projects year-to-date emissions linearly over the year.
func CarbonBudget(target, ytd float64, daysElapsed, daysInYear int) Budget {
	if daysElapsed < 1 {
		daysElapsed = 1
	}
	projected := ytd / float64(daysElapsed) * float64(daysInYear)
	return Budget{
		AnnualTarget:     target,
		CurrentEmissions: ytd,
		RemainingBudget:  math.Max(0, target-ytd),
		ProjectedAnnual:  projected,
		OnTrack:          projected <= target,
		DaysElapsed:      daysElapsed,
		DaysRemaining:    max(0, daysInYear-daysElapsed),
	}
}

// BudgetAt evaluates CarbonBudget with the calendar position of now.
func BudgetAt(target, ytd float64, now time.Time) Budget {
	return CarbonBudget(target, ytd, now.YearDay(), DaysInYear(now.Year()))
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

// Intensity relates emissions to revenue.
type Intensity struct {
	Unit      string  `json:"unit"`
	Emissions float64 `json:"emissions"`
	Revenue   float64 `json:"revenue"`
	Intensity float64 `json:"intensity"`
}

// CarbonIntensity divides emissions by revenue. Non-positive revenue yields 0.
func CarbonIntensity(emissions, revenue float64) Intensity {
	i := Intensity{Emissions: emissions, Revenue: revenue, Unit: IntensityUnit}
	if revenue > 0 {
		i.Intensity = emissions / revenue
	}
	return i
}

// Benchmark compares a company intensity with its sector average.
type Benchmark struct {
	Sector           string      `json:"sector"`
	Performance      Performance `json:"performance"`
	AverageIntensity float64     `json:"averageIntensity"`
	CompanyIntensity float64     `json:"companyIntensity"`
	Ratio            float64     `json:"ratio"`
	Percentile       int         `json:"percentile"`
}

// SectorAverage looks up a sector case-insensitively, falling back to the default.
func (t Tables) SectorAverage(sector string) float64 {
	t = t.WithDefaults()
	if avg, ok := t.SectorAverages[strings.ToLower(strings.TrimSpace(sector))]; ok && avg > 0 {
		return avg
	}
	return t.DefaultSectorAverage
}

// SectorBenchmark grades intensity against the sector average: a ratio up to
// 0.8 is above average, up to 1.2 average, anything higher below average.
func SectorBenchmark(intensity float64, sector string, tables Tables) Benchmark {
	avg := tables.SectorAverage(sector)
	ratio := intensity / avg

	b := Benchmark{
		Sector:           strings.ToLower(strings.TrimSpace(sector)),
		AverageIntensity: avg,
		CompanyIntensity: intensity,
		Ratio:            ratio,
	}
	switch {
	case ratio <= 0.8:
		b.Performance, b.Percentile = AboveAverage, 90
	case ratio <= 1.2:
		b.Performance, b.Percentile = Average, 50
	default:
		b.Performance, b.Percentile = BelowAverage, 10
	}
	return b
}

// Opportunity is a suggested reduction for one category.
type Opportunity struct {
	Category           string  `json:"category"`
	Recommendation     string  `json:"recommendation"`
	Effort             string  `json:"effort"`
	Impact             string  `json:"impact"`
	CurrentEmissions   float64 `json:"currentEmissions"`
	PotentialReduction float64 `json:"potentialReduction"`
	ImplementationCost float64 `json:"implementationCost"`
	ROI                float64 `json:"roi"`
}

// ReductionOpportunities matches material categories against the templates.
// Categories at or below the materiality threshold, or without a template,
// are skipped. Results are ordered by ROI, highest first.
func ReductionOpportunities(categories []CategoryTotal, tables Tables) []Opportunity {
	tables = tables.WithDefaults()

	opps := []Opportunity{}
	for _, c := range categories {
		if c.Emissions <= tables.MaterialityThreshold {
			continue
		}
		tpl, ok := tables.Opportunities[c.Category]
		if !ok {
			continue
		}
		opps = append(opps, Opportunity{
			Category:           c.Category,
			Recommendation:     tpl.Recommendation,
			Effort:             tpl.Effort,
			Impact:             tpl.Impact,
			CurrentEmissions:   c.Emissions,
			PotentialReduction: c.Emissions * tpl.ReductionFraction,
			ImplementationCost: tpl.ImplementationCost,
			ROI:                tpl.ROI,
		})
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ROI > opps[j].ROI
	})
	return opps
}

// ScopeCosts splits a carbon cost by scope.
type ScopeCosts struct {
	Scope1 float64 `json:"scope1"`
	Scope2 float64 `json:"scope2"`
	Scope3 float64 `json:"scope3"`
}

// CarbonCost prices emissions at a carbon price per tonne.
type CarbonCost struct {
	ByScope         ScopeCosts `json:"byScope"`
	TotalCost       float64    `json:"totalCost"`
	MonthlyAverage  float64    `json:"monthlyAverage"`
	ProjectedAnnual float64    `json:"projectedAnnual"`
	CarbonPrice     float64    `json:"carbonPrice"`
	Months          float64    `json:"months"`
}

// averageMonthDays is the mean length of a Gregorian month.
const averageMonthDays = 30.44

// CarbonCosts prices a summary over the period [start, end]. The period counts
// as at least one month.
func CarbonCosts(s Summary, price float64, start, end time.Time) CarbonCost {
	if price <= 0 {
		price = DefaultCarbonPrice
	}
	byScope := ScopeCosts{
		Scope1: s.Scope1 / 1000 * price,
		Scope2: s.Scope2 / 1000 * price,
		Scope3: s.Scope3 / 1000 * price,
	}
	total := byScope.Scope1 + byScope.Scope2 + byScope.Scope3

	days := end.Sub(start).Hours() / 24
	months := math.Max(1, days/averageMonthDays)
	monthly := total / months

	return CarbonCost{
		ByScope:         byScope,
		TotalCost:       total,
		MonthlyAverage:  monthly,
		ProjectedAnnual: monthly * 12,
		CarbonPrice:     price,
		Months:          months,
	}
}

// CategoryShare is one category inside a scope breakdown.
type CategoryShare struct {
	Category   string  `json:"category"`
	Emissions  float64 `json:"emissions"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

// ScopeBreakdown lists the categories contributing to one scope.
type ScopeBreakdown struct {
	Categories []CategoryShare `json:"categories"`
	Scope      model.Scope     `json:"scope"`
	Total      float64         `json:"totalEmissions"`
}

// AnalyzeScopes breaks each of the three scopes down by category. Shares are
// relative to the scope total and categories are ordered largest first.
func AnalyzeScopes(txns []model.LedgerTransaction) []ScopeBreakdown {
	out := make([]ScopeBreakdown, 0, len(model.Scopes))
	for _, scope := range model.Scopes {
		var rows []model.LedgerTransaction
		for i := range txns {
			if txns[i].Scope == scope {
				rows = append(rows, txns[i])
			}
		}
		summary := Summarize(rows)

		b := ScopeBreakdown{Scope: scope, Total: summary.Total, Categories: []CategoryShare{}}
		for _, c := range summary.ByCategory {
			share := CategoryShare{Category: c.Category, Emissions: c.Emissions, Count: c.Count}
			if summary.Total > 0 {
				share.Percentage = c.Emissions / summary.Total * 100
			}
			b.Categories = append(b.Categories, share)
		}
		out = append(out, b)
	}
	return out
}
