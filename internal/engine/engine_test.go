package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/classification"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/emissions"
	"github.com/Veraticus/the-carbon-must-flow/internal/metrics"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/parser"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/Veraticus/the-carbon-must-flow/internal/storage"
	"github.com/Veraticus/the-carbon-must-flow/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioCSV = "Merchant,Amount,Date\n" +
	"Shell Fuel,45.00,01/03/2024\n" +
	"EDF Energy,€120.00,2024-03-05\n" +
	"Ryanair,150,05-03-2024\n"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	store   *storage.SQLiteStorage
	engine  *Engine
	primary *MockClassifier
	metrics *metrics.Metrics
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := testutil.SetupTestDB(t)
	primary := NewMockClassifier().FailWith(errors.New("remote classifier unavailable"))
	classifier := classification.NewFallbackClassifier(primary, classification.NewDefaultRuleClassifier(), quietLogger)

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	e := New(store,
		classification.NewBatchClassifier(classifier, 10, 0),
		emissions.NewCalculator(store, emissions.WithLogger(quietLogger)),
		WithMetrics(m),
		WithLogger(quietLogger),
		WithIDGenerator(sequentialIDs()),
	)
	return &fixture{store: store, engine: e, primary: primary, metrics: m}
}

func TestIngest_EndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.engine.Ingest(ctx, f.engine, Upload{
		UserID:   "acme",
		Filename: "march.csv",
		Data:     []byte(scenarioCSV),
	})
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, result.Format)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 3, result.ValidRows)
	assert.Empty(t, result.Errors)

	upload, err := f.store.GetUpload(ctx, result.Upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, upload.Status)
	assert.Equal(t, 3, upload.TotalRows)
	assert.Equal(t, 3, upload.ProcessedRows)
	assert.NotNil(t, upload.CompletedAt)

	rows, err := f.store.GetLedgerTransactions(ctx, service.TransactionFilter{UploadID: upload.ID})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byDesc := map[string]model.LedgerTransaction{}
	for _, r := range rows {
		byDesc[r.Description] = r
	}
	wantScopes := map[string]model.Scope{
		"Shell Fuel": model.Scope1,
		"EDF Energy": model.Scope2,
		"Ryanair":    model.Scope3,
	}
	for desc, scope := range wantScopes {
		row, ok := byDesc[desc]
		require.True(t, ok, desc)
		assert.Equal(t, scope, row.Scope, desc)
		assert.Greater(t, row.CO2Emissions, 0.0, desc)
		assert.False(t, row.AIClassified, desc)
		assert.True(t, row.Verified, desc)
		assert.Equal(t, "acme", row.UserID)
	}
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), byDesc["Shell Fuel"].Date.UTC())
	assert.InDelta(t, 120, byDesc["EDF Energy"].Amount, 1e-9)

	assert.Equal(t, 3, f.primary.CallCount())

	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `carbon_rows_total{outcome="valid"} 3`)
	assert.Contains(t, rec.Body.String(), `carbon_batches_total{status="completed"} 1`)
	assert.Contains(t, rec.Body.String(), `carbon_classifications_total{source="rule"} 3`)
}

func TestIngest_StructuralErrorCreatesNoBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ingest(ctx, f.engine, Upload{
		UserID:   "acme",
		Filename: "bad.csv",
		Data:     []byte("Merchant,Amount,Notes\nShell,45,x\n"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrStructural)

	uploads, err := f.store.GetUserUploads(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestIngest_NoValidRowsFailsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.engine.Ingest(ctx, f.engine, Upload{
		UserID:   "acme",
		Filename: "empty.csv",
		Data:     []byte("Description,Amount,Date\nShell,-5,2024-03-01\nAB,10,2024-03-02\n"),
	})
	require.ErrorIs(t, err, ErrNoValidTransactions)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 0, result.ValidRows)
	assert.Len(t, result.Errors, 2)

	upload, err := f.store.GetUpload(ctx, result.Upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchFailed, upload.Status)
	assert.Equal(t, NoValidRowsMessage, upload.ErrorMessage)
	assert.Equal(t, 2, upload.TotalRows)
	assert.Zero(t, f.primary.CallCount())
}

func TestIngest_CountsDuplicatesFromEarlierBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upload := Upload{UserID: "acme", Filename: "march.csv", Data: []byte(scenarioCSV)}

	first, err := f.engine.Ingest(ctx, f.engine, upload)
	require.NoError(t, err)
	assert.Zero(t, first.Duplicates)

	second, err := f.engine.Ingest(ctx, f.engine, upload)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Duplicates)

	other, err := f.engine.Ingest(ctx, f.engine, Upload{UserID: "globex", Filename: "march.csv", Data: []byte(scenarioCSV)})
	require.NoError(t, err)
	assert.Zero(t, other.Duplicates)

	rows, err := f.store.GetLedgerTransactions(ctx, service.TransactionFilter{UserID: "acme"})
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

type rejectingSubmitter struct{ err error }

func (r rejectingSubmitter) Submit(context.Context, Job) error { return r.err }

func TestIngest_SubmitFailureFailsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.engine.Ingest(ctx, rejectingSubmitter{err: ErrProcessorClosed}, Upload{
		UserID:   "acme",
		Filename: "march.csv",
		Data:     []byte(scenarioCSV),
	})
	require.ErrorIs(t, err, ErrProcessorClosed)
	require.NotNil(t, result)
	assert.Equal(t, model.BatchFailed, result.Upload.Status)

	upload, err := f.store.GetUpload(ctx, result.Upload.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchFailed, upload.Status)
	assert.Contains(t, upload.ErrorMessage, "failed to queue batch")
	assert.Zero(t, upload.ProcessedRows)
	assert.Zero(t, f.primary.CallCount())

	rows, err := f.store.GetLedgerTransactions(ctx, service.TransactionFilter{UploadID: upload.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIngest_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		upload Upload
		want   error
	}{
		{"missing filename", Upload{Data: []byte("x")}, common.ErrInvalidInput},
		{"empty file", Upload{Filename: "a.csv"}, common.ErrInvalidInput},
		{"unsupported extension", Upload{Filename: "a.docx", Data: []byte("x")}, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Ingest(context.Background(), f.engine, tt.upload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIngest_TextDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := "HILTON DUBLIN - Invoice\n15/03/2024\nRoom and breakfast\nTotal: 240.00\n"
	result, err := f.engine.Ingest(ctx, f.engine, Upload{UserID: "acme", Filename: "receipt.txt", Data: []byte(doc)})
	require.NoError(t, err)
	assert.Equal(t, FormatText, result.Format)
	assert.Equal(t, 1, result.ValidRows)
	assert.Greater(t, result.Confidence, 0.0)

	rows, err := f.store.GetLedgerTransactions(ctx, service.TransactionFilter{UserID: "acme"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 240, rows[0].Amount, 1e-9)
}

type failingBatch struct{ err error }

func (f failingBatch) ClassifyAll(context.Context, []classification.Request) ([]model.ClassificationResult, error) {
	return nil, f.err
}

func TestProcessBatch_FailureMarksUploadFailed(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	e := New(store, failingBatch{err: errors.New("provider exploded")}, emissions.NewCalculator(store),
		WithLogger(quietLogger), WithIDGenerator(sequentialIDs()))

	_, err := e.Ingest(ctx, e, Upload{UserID: "acme", Filename: "march.csv", Data: []byte(scenarioCSV)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider exploded")

	uploads, err := store.GetUserUploads(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, model.BatchFailed, uploads[0].Status)
	assert.Equal(t, "classification failed: provider exploded", uploads[0].ErrorMessage)

	rows, err := store.GetLedgerTransactions(ctx, service.TransactionFilter{UserID: "acme"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestProcessBatch_AIResultsAreMarked(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	mock := NewMockClassifier().
		On("shell", model.ClassificationResult{Category: "Fuel and Energy", Subcategory: "Vehicle Fuel", Scope: model.Scope1, Confidence: 0.95}).
		On("edf", model.ClassificationResult{Category: "Energy", Subcategory: "Electricity", Scope: model.Scope2, Confidence: 0.7})

	e := New(store, classification.NewBatchClassifier(mock, 2, 0), emissions.NewCalculator(store),
		WithLogger(quietLogger), WithIDGenerator(sequentialIDs()))

	_, err := e.Ingest(ctx, e, Upload{UserID: "acme", Filename: "march.csv", Data: []byte(scenarioCSV)})
	require.NoError(t, err)

	rows, err := store.GetLedgerTransactions(ctx, service.TransactionFilter{UserID: "acme"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	verified := map[string]bool{}
	for _, r := range rows {
		assert.True(t, r.AIClassified)
		verified[r.Description] = r.Verified
	}
	assert.True(t, verified["Shell Fuel"])
	assert.False(t, verified["EDF Energy"])
	assert.False(t, verified["Ryanair"])

	calls := mock.Calls()
	require.Len(t, calls, 3)
	seen := map[string]bool{}
	for _, c := range calls {
		seen[c.Request.Description] = true
	}
	assert.True(t, seen["Ryanair"])
}

func TestCorrectTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Ingest(ctx, f.engine, Upload{UserID: "acme", Filename: "march.csv", Data: []byte(scenarioCSV)})
	require.NoError(t, err)

	rows, err := f.store.GetLedgerTransactions(ctx, service.TransactionFilter{UserID: "acme"})
	require.NoError(t, err)
	var ryanair model.LedgerTransaction
	for _, r := range rows {
		if r.Description == "Ryanair" {
			ryanair = r
		}
	}
	require.NotEmpty(t, ryanair.ID)

	sub := "Accommodation"
	scope := model.Scope3
	corrected, err := f.engine.CorrectTransaction(ctx, ryanair.ID, service.TransactionCorrection{
		Category:    "Business Travel",
		Subcategory: &sub,
		Scope:       &scope,
	})
	require.NoError(t, err)
	assert.Equal(t, "Accommodation", corrected.Subcategory)
	assert.True(t, corrected.Verified)
	assert.False(t, corrected.AIClassified)
	assert.Equal(t, ManualReasoning, corrected.Reasoning)
	assert.InDelta(t, 1.0, corrected.Confidence, 1e-9)
	assert.NotEqual(t, ryanair.CO2Emissions, corrected.CO2Emissions)

	stored, err := f.store.GetLedgerTransaction(ctx, ryanair.ID)
	require.NoError(t, err)
	assert.Equal(t, "Accommodation", stored.Subcategory)
	assert.InDelta(t, corrected.CO2Emissions, stored.CO2Emissions, 1e-9)
}

func TestCorrectTransaction_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := model.Scope(7)

	_, err := f.engine.CorrectTransaction(ctx, "id-1", service.TransactionCorrection{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.engine.CorrectTransaction(ctx, "id-1", service.TransactionCorrection{Category: "Energy", Scope: &bad})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.engine.CorrectTransaction(ctx, "missing", service.TransactionCorrection{Category: "Energy"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVerifyTransaction(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	b := testutil.NewLedgerBuilder("acme", "batch-1").
		Add("Uber to airport", "Business Travel", model.Scope3, 30, 4.2, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	rows := b.Build()
	rows[0].Verified = false
	rows[0].Confidence = 0.6
	b.Seed(t, store)

	e := New(store, nil, emissions.NewCalculator(store), WithLogger(quietLogger))
	txn, err := e.VerifyTransaction(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.True(t, txn.Verified)

	_, err = e.VerifyTransaction(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
