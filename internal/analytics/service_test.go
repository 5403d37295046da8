package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/Veraticus/the-carbon-must-flow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := testutil.SetupTestDB(t)

	testutil.NewLedgerBuilder("acme", "batch-1").
		Add("Shell diesel", "Fuel and Energy", model.Scope1, 450, 806.1, day(2023, 12, 20)).
		Add("Shell diesel", "Fuel and Energy", model.Scope1, 300, 537.4, day(2024, 1, 15)).
		Add("EDF electricity", "Energy", model.Scope2, 400, 308.8, day(2024, 4, 2)).
		Add("Ryanair DUB-LHR", "Business Travel", model.Scope3, 150, 58.5, day(2024, 5, 9)).
		Add("Hilton Paris", "Business Travel", model.Scope3, 300, 72.9, day(2024, 6, 10)).
		Seed(t, store)

	testutil.NewLedgerBuilder("other", "batch-2").
		Add("Shell diesel", "Fuel and Energy", model.Scope1, 4500, 8061, day(2024, 2, 1)).
		Seed(t, store)

	clock := func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	return NewService(store, DefaultTables(), WithClock(clock))
}

func TestService_Summary(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	all, err := svc.Summary(ctx, "acme", service.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 5, all.Count)
	assert.InDelta(t, 806.1+537.4+308.8+58.5+72.9, all.Total, 1e-9)

	q2, err := svc.Summary(ctx, "acme", service.DateRange{Start: day(2024, 4, 1), End: day(2024, 6, 30)})
	require.NoError(t, err)
	assert.Equal(t, 3, q2.Count)
	assert.Zero(t, q2.Scope1)

	none, err := svc.Summary(ctx, "nobody", service.DateRange{})
	require.NoError(t, err)
	assert.Zero(t, none.Count)
	assert.Empty(t, none.ByCategory)
}

func TestService_Trend(t *testing.T) {
	svc := newTestService(t)

	points, err := svc.Trend(context.Background(), "acme", 3)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "2024-04", points[0].Period)
	assert.InDelta(t, 308.8, points[0].Emissions, 1e-9)
	assert.InDelta(t, 58.5, points[1].Emissions, 1e-9)
	assert.Equal(t, Decreasing, points[1].Direction)
	assert.InDelta(t, 72.9, points[2].Emissions, 1e-9)
	assert.Equal(t, Increasing, points[2].Direction)
}

func TestService_Budget(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.Budget(ctx, "acme", 3000)
	require.NoError(t, err)

	ytd := 537.4 + 308.8 + 58.5 + 72.9
	assert.InDelta(t, ytd, b.CurrentEmissions, 1e-9)
	assert.Equal(t, 167, b.DaysElapsed)
	assert.InDelta(t, ytd/167*366, b.ProjectedAnnual, 1e-9)
	assert.True(t, b.OnTrack)

	_, err = svc.Budget(ctx, "acme", 0)
	require.Error(t, err)
}

func TestService_BenchmarkAndOpportunities(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	year := service.DateRange{Start: day(2024, 1, 1), End: day(2024, 12, 31)}

	b, err := svc.Benchmark(ctx, "acme", "Technology", 20000, year)
	require.NoError(t, err)
	assert.InDelta(t, 977.6/20000, b.CompanyIntensity, 1e-9)
	assert.Equal(t, AboveAverage, b.Performance)

	opps, err := svc.Opportunities(ctx, "acme", year)
	require.NoError(t, err)
	require.Len(t, opps, 3)
	assert.Equal(t, "Business Travel", opps[0].Category)
	assert.Equal(t, "Energy", opps[1].Category)
	assert.Equal(t, "Fuel and Energy", opps[2].Category)
	assert.InDelta(t, 537.4*0.3, opps[2].PotentialReduction, 1e-9)
}

func TestService_CarbonCostDefaults(t *testing.T) {
	svc := newTestService(t)

	cost, err := svc.CarbonCost(context.Background(), "acme", 0, service.DateRange{})
	require.NoError(t, err)
	assert.InDelta(t, DefaultCarbonPrice, cost.CarbonPrice, 1e-9)
	assert.InDelta(t, 537.4/1000*85, cost.ByScope.Scope1, 1e-9)

	days := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).Sub(day(2024, 1, 1)).Hours() / 24
	assert.InDelta(t, days/30.44, cost.Months, 1e-9)
}

func TestService_Scopes(t *testing.T) {
	svc := newTestService(t)

	scopes, err := svc.Scopes(context.Background(), "acme", service.DateRange{Start: day(2024, 1, 1)})
	require.NoError(t, err)
	require.Len(t, scopes, 3)
	assert.InDelta(t, 537.4, scopes[0].Total, 1e-9)
	assert.InDelta(t, 131.4, scopes[2].Total, 1e-9)
}

type brokenReader struct{}

func (brokenReader) GetLedgerTransactions(context.Context, service.TransactionFilter) ([]model.LedgerTransaction, error) {
	return nil, errors.New("disk I/O error")
}

func TestService_StoreErrors(t *testing.T) {
	svc := NewService(brokenReader{}, Tables{})

	_, err := svc.Summary(context.Background(), "acme", service.DateRange{})
	require.ErrorContains(t, err, "disk I/O error")

	_, err = svc.Trend(context.Background(), "acme", 12)
	require.Error(t, err)
}
