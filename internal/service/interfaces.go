// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// TransactionFilter defines filtering options for ledger queries.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	Scope      *model.Scope
	UserID     string
	UploadID   string
	Category   string
	Limit      int
	Offset     int
	Unverified bool
}

// TransactionCorrection is an explicit human correction of a ledger row.
type TransactionCorrection struct {
	Subcategory *string
	Scope       *model.Scope
	Category    string
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Upload batch operations
	CreateUpload(ctx context.Context, upload *model.UploadBatch) error
	GetUpload(ctx context.Context, id string) (*model.UploadBatch, error)
	GetUserUploads(ctx context.Context, userID string) ([]model.UploadBatch, error)
	SetUploadTotalRows(ctx context.Context, id string, totalRows int) error
	CompleteUpload(ctx context.Context, id string, processedRows int) error
	FailUpload(ctx context.Context, id string, message string) error

	// Ledger operations
	SaveLedgerTransactions(ctx context.Context, transactions []model.LedgerTransaction) error
	GetLedgerTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error)
	GetLedgerTransactions(ctx context.Context, filter TransactionFilter) ([]model.LedgerTransaction, error)
	VerifyTransaction(ctx context.Context, id string) error
	UpdateTransactionClassification(ctx context.Context, txn *model.LedgerTransaction) error
	ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error)

	// Emission factor operations
	CountEmissionFactors(ctx context.Context) (int, error)
	GetEmissionFactors(ctx context.Context) ([]model.EmissionFactor, error)
	GetEmissionFactor(ctx context.Context, category, subcategory string) (*model.EmissionFactor, error)
	CreateEmissionFactor(ctx context.Context, factor *model.EmissionFactor) error
	GetOrCreateEmissionFactor(ctx context.Context, factor *model.EmissionFactor) (*model.EmissionFactor, error)

	// Report operations
	SaveReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	GetUserReports(ctx context.Context, userID string) ([]model.Report, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range. Zero bounds are open.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
