package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
)

// LedgerReader is the storage view the analytics service reads from.
type LedgerReader interface {
	GetLedgerTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.LedgerTransaction, error)
}

// Service computes analytics views over a user's ledger.
type Service struct {
	store  LedgerReader
	now    func() time.Time
	tables Tables
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock replaces the clock used for year-to-date and open-ended periods.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an analytics service using tables for heuristics.
func NewService(store LedgerReader, tables Tables, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		tables: tables.WithDefaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tables returns the heuristic tables in effect.
func (s *Service) Tables() Tables {
	return s.tables
}

func (s *Service) load(ctx context.Context, userID string, period service.DateRange) ([]model.LedgerTransaction, error) {
	filter := service.TransactionFilter{UserID: userID}
	if !period.Start.IsZero() {
		start := period.Start
		filter.StartDate = &start
	}
	if !period.End.IsZero() {
		end := period.End
		filter.EndDate = &end
	}

	txns, err := s.store.GetLedgerTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}
	return txns, nil
}

// Summary totals the user's emissions in period. Zero bounds are open.
func (s *Service) Summary(ctx context.Context, userID string, period service.DateRange) (Summary, error) {
	txns, err := s.load(ctx, userID, period)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(txns), nil
}

// Trend returns monthly buckets for the trailing periods months.
func (s *Service) Trend(ctx context.Context, userID string, periods int) ([]TrendPoint, error) {
	now := s.now()
	txns, err := s.load(ctx, userID, service.DateRange{Start: TrendStart(now, periods)})
	if err != nil {
		return nil, err
	}
	return Trends(txns, now, periods), nil
}

// Budget compares year-to-date emissions with an annual target in kg.
func (s *Service) Budget(ctx context.Context, userID string, target float64) (Budget, error) {
	if target <= 0 {
		return Budget{}, fmt.Errorf("%w: annual target must be positive, got %v", common.ErrInvalidInput, target)
	}
	now := s.now()
	summary, err := s.Summary(ctx, userID, service.DateRange{Start: yearStart(now), End: now})
	if err != nil {
		return Budget{}, err
	}
	return BudgetAt(target, summary.Total, now), nil
}

// Intensity divides the period's emissions by revenue.
func (s *Service) Intensity(ctx context.Context, userID string, revenue float64, period service.DateRange) (Intensity, error) {
	summary, err := s.Summary(ctx, userID, period)
	if err != nil {
		return Intensity{}, err
	}
	return CarbonIntensity(summary.Total, revenue), nil
}

// Benchmark grades the period's intensity against the sector average.
func (s *Service) Benchmark(ctx context.Context, userID, sector string, revenue float64, period service.DateRange) (Benchmark, error) {
	intensity, err := s.Intensity(ctx, userID, revenue, period)
	if err != nil {
		return Benchmark{}, err
	}
	return SectorBenchmark(intensity.Intensity, sector, s.tables), nil
}

// Opportunities lists reduction levers for the period's material categories.
func (s *Service) Opportunities(ctx context.Context, userID string, period service.DateRange) ([]Opportunity, error) {
	summary, err := s.Summary(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	return ReductionOpportunities(summary.ByCategory, s.tables), nil
}

// CarbonCost prices the period's emissions. A zero start means January 1 of
// the end year, a zero end means now, and a non-positive price uses the table price.
func (s *Service) CarbonCost(ctx context.Context, userID string, price float64, period service.DateRange) (CarbonCost, error) {
	if period.End.IsZero() {
		period.End = s.now()
	}
	if period.Start.IsZero() {
		period.Start = yearStart(period.End)
	}
	if price <= 0 {
		price = s.tables.CarbonPrice
	}

	summary, err := s.Summary(ctx, userID, period)
	if err != nil {
		return CarbonCost{}, err
	}
	return CarbonCosts(summary, price, period.Start, period.End), nil
}

// Scopes breaks the period's emissions down by scope and category.
func (s *Service) Scopes(ctx context.Context, userID string, period service.DateRange) ([]ScopeBreakdown, error) {
	txns, err := s.load(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	return AnalyzeScopes(txns), nil
}

func yearStart(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}
