package climatiq

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/Veraticus/the-carbon-must-flow/internal/testutil"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{"results":[
	{"id":"ef-1","name":"Diesel - road","category":"Fuel","subcategory":"Diesel","factor":2.7,"unit":"kg CO2e per litre","region":"EU","year":2024,"source":"BEIS"},
	{"id":"ef-2","name":"Grid average","category":"Electricity","factor":0.27,"unit":"kg CO2e per kWh","region":"EU","source":"EEA"},
	{"id":"ef-3","name":"Broken","category":"","factor":1,"unit":"kg"}
]}`

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey: "secret",
		Retry:  service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(Config{APIKey: "  "})
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestSearch(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/emission-factors",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
			assert.Equal(t, "diesel", req.URL.Query().Get("query"))
			assert.Equal(t, "EU", req.URL.Query().Get("region"))
			assert.Equal(t, "2024", req.URL.Query().Get("year"))
			assert.Empty(t, req.URL.Query().Get("category"))
			return httpmock.NewStringResponse(http.StatusOK, searchBody), nil
		})

	factors, err := client.Search(context.Background(), SearchRequest{Query: "diesel", Region: "EU", Year: 2024})
	require.NoError(t, err)
	require.Len(t, factors, 3)
	assert.Equal(t, "ef-1", factors[0].ID)
	assert.InDelta(t, 2.7, factors[0].Factor, 1e-9)
}

func TestSearch_StatusHandling(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		client := newMockedClient(t)
		httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/emission-factors",
			httpmock.ResponderFromMultipleResponses([]*http.Response{
				httpmock.NewStringResponse(http.StatusBadGateway, "upstream"),
				httpmock.NewStringResponse(http.StatusOK, `{"results":[]}`),
			}))

		factors, err := client.Search(context.Background(), SearchRequest{Query: "taxi"})
		require.NoError(t, err)
		assert.Empty(t, factors)
		assert.Equal(t, 2, httpmock.GetTotalCallCount())
	})

	t.Run("rate limits wait at most the configured maximum", func(t *testing.T) {
		client := newMockedClient(t)
		limited := httpmock.NewStringResponse(http.StatusTooManyRequests, "slow down")
		limited.Header = http.Header{"Retry-After": []string{"30"}}
		httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/emission-factors",
			httpmock.ResponderFromMultipleResponses([]*http.Response{
				limited,
				httpmock.NewStringResponse(http.StatusOK, `{"results":[]}`),
			}))

		start := time.Now()
		_, err := client.Search(context.Background(), SearchRequest{Query: "taxi"})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, 2, httpmock.GetTotalCallCount())
	})

	t.Run("persistent rate limits surface", func(t *testing.T) {
		client := newMockedClient(t)
		httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/emission-factors",
			httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

		_, err := client.Search(context.Background(), SearchRequest{Query: "taxi"})
		require.ErrorIs(t, err, common.ErrRateLimit)
		require.ErrorIs(t, err, common.ErrMaxRetries)
		assert.Equal(t, 2, httpmock.GetTotalCallCount())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		client := newMockedClient(t)
		httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/emission-factors",
			httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"invalid key"}`))

		_, err := client.Search(context.Background(), SearchRequest{Query: "taxi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})
}

func TestToEmissionFactor(t *testing.T) {
	tests := []struct {
		name   string
		in     Factor
		ok     bool
		scope  model.Scope
		sub    string
		year   int
		source string
	}{
		{
			name:   "fuel maps to scope 1",
			in:     Factor{Name: "Diesel", Category: "Fuel", Subcategory: "Diesel", Factor: 2.7, Unit: "kg", Year: 2023, Source: "BEIS"},
			ok:     true,
			scope:  model.Scope1,
			sub:    "Diesel",
			year:   2023,
			source: "Climatiq / BEIS",
		},
		{
			name:   "name fills missing subcategory",
			in:     Factor{Name: "Grid average", Category: "Electricity", Factor: 0.27, Unit: "kWh"},
			ok:     true,
			scope:  model.Scope2,
			sub:    "Grid average",
			year:   2024,
			source: "Climatiq",
		},
		{name: "missing category", in: Factor{Factor: 1, Unit: "kg"}},
		{name: "zero factor", in: Factor{Category: "Waste", Unit: "kg"}},
		{name: "missing unit", in: Factor{Category: "Waste", Factor: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ef, ok := tt.in.ToEmissionFactor()
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.scope, ef.Scope)
			assert.Equal(t, tt.sub, ef.Subcategory)
			assert.Equal(t, tt.year, ef.Year)
			assert.Equal(t, tt.source, ef.Source)
		})
	}
}

func TestImporter_Import(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/emission-factors",
		httpmock.NewStringResponder(http.StatusOK, searchBody))

	store := testutil.SetupTestDB(t)
	importer := NewImporter(client, store, nil)
	queries := []SearchRequest{{Query: "diesel"}}

	result, err := importer.Import(context.Background(), queries)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Fetched: 3, Imported: 2, Skipped: 1}, result)

	factor, err := store.GetEmissionFactor(context.Background(), "Fuel", "Diesel")
	require.NoError(t, err)
	assert.Equal(t, "Climatiq / BEIS", factor.Source)

	result, err = importer.Import(context.Background(), queries)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Fetched: 3, Existing: 2, Skipped: 1}, result)
}

func TestImporter_SearchFailureStopsRun(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/emission-factors",
		httpmock.NewStringResponder(http.StatusForbidden, "no"))

	store := testutil.SetupTestDB(t)
	result, err := NewImporter(client, store, nil).Import(context.Background(), DefaultQueries("EU", 2024))
	require.Error(t, err)
	assert.Zero(t, result.Imported)

	factors, err := store.GetEmissionFactors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, factors)
}
