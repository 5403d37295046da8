// Package testutil provides shared test fixtures for packages that need a migrated ledger.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/storage"
)

// SetupTestDB creates a new in-memory, fully migrated ledger database.
// Cleanup is registered on t.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// LedgerBuilder assembles ledger rows for analytics and report tests.
type LedgerBuilder struct {
	userID   string
	uploadID string
	rows     []model.LedgerTransaction
}

// NewLedgerBuilder starts a builder for rows owned by userID and uploadID.
func NewLedgerBuilder(userID, uploadID string) *LedgerBuilder {
	return &LedgerBuilder{userID: userID, uploadID: uploadID}
}

// Add appends a row with the given classification and emissions.
func (b *LedgerBuilder) Add(description, category string, scope model.Scope, amount, co2 float64, date time.Time) *LedgerBuilder {
	b.rows = append(b.rows, model.LedgerTransaction{
		ID:               fmt.Sprintf("%s-%03d", b.uploadID, len(b.rows)+1),
		UserID:           b.userID,
		UploadID:         b.uploadID,
		Description:      description,
		Amount:           amount,
		Date:             date,
		Category:         category,
		Scope:            scope,
		Confidence:       0.9,
		CO2Emissions:     co2,
		EmissionsFactor:  co2 / amount,
		FactorUnit:       "kg CO2e per €",
		FactorSource:     "DEFRA 2024",
		FactorConfidence: model.ConfidenceHigh,
		Verified:         true,
	})
	return b
}

// Build returns the assembled rows.
func (b *LedgerBuilder) Build() []model.LedgerTransaction {
	return b.rows
}

// Seed writes the rows into store under a completed upload batch.
func (b *LedgerBuilder) Seed(t *testing.T, store *storage.SQLiteStorage) []model.LedgerTransaction {
	t.Helper()
	ctx := context.Background()

	upload := &model.UploadBatch{
		ID:       b.uploadID,
		UserID:   b.userID,
		Filename: b.uploadID + ".csv",
		Status:   model.BatchProcessing,
	}
	if err := store.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("failed to create upload: %v", err)
	}
	if err := store.SaveLedgerTransactions(ctx, b.rows); err != nil {
		t.Fatalf("failed to save ledger rows: %v", err)
	}
	if err := store.CompleteUpload(ctx, b.uploadID, len(b.rows)); err != nil {
		t.Fatalf("failed to complete upload: %v", err)
	}
	return b.rows
}
