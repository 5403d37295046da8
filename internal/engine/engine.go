// Package engine owns the upload batch lifecycle: it classifies candidate
// transactions, prices them and writes them to the emissions ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/classification"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/emissions"
	"github.com/Veraticus/the-carbon-must-flow/internal/metrics"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/google/uuid"
)

// ManualReasoning is recorded on rows corrected by a person.
const ManualReasoning = "Manually corrected"

// BatchClassifier classifies a whole batch, returning results in input order.
type BatchClassifier interface {
	ClassifyAll(ctx context.Context, reqs []classification.Request) ([]model.ClassificationResult, error)
}

// Calculator prices a classified expense.
type Calculator interface {
	Calculate(ctx context.Context, category, subcategory string, amount float64, scope model.Scope) emissions.Calculation
}

// Job is one upload batch waiting to be processed.
type Job struct {
	SubmittedAt time.Time
	UploadID    string
	UserID      string
	Candidates  []model.CandidateTransaction
}

// Engine turns candidate transactions into ledger rows.
type Engine struct {
	store      service.Storage
	classifier BatchClassifier
	calculator Calculator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	newID      func() string
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDGenerator replaces the uuid generator used for uploads and ledger rows.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine.
func New(store service.Storage, classifier BatchClassifier, calculator Calculator, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		classifier: classifier,
		calculator: calculator,
		logger:     slog.Default(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit processes job synchronously. It lets the engine stand in for a
// Processor where nothing runs in the background, such as the CLI import.
func (e *Engine) Submit(ctx context.Context, job Job) error {
	return e.ProcessBatch(ctx, job)
}

// ProcessBatch classifies and prices every candidate of job, saves the rows and
// completes the upload. Any failure moves the upload to failed with the error
// as its message.
func (e *Engine) ProcessBatch(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = e.now()
	}

	processed, err := e.processBatch(ctx, job)
	elapsed := e.now().Sub(job.SubmittedAt)

	if err != nil {
		e.metrics.RecordBatch(metrics.StatusFailed, elapsed)
		e.logger.Error("Batch processing failed",
			"upload_id", job.UploadID,
			"error", err)
		if failErr := e.store.FailUpload(context.WithoutCancel(ctx), job.UploadID, err.Error()); failErr != nil {
			return errors.Join(err, fmt.Errorf("failed to mark upload failed: %w", failErr))
		}
		return err
	}

	e.metrics.RecordBatch(metrics.StatusCompleted, elapsed)
	e.logger.Info("Batch processed",
		"upload_id", job.UploadID,
		"rows", processed,
		"duration", elapsed)
	return nil
}

func (e *Engine) processBatch(ctx context.Context, job Job) (int, error) {
	if len(job.Candidates) == 0 {
		return 0, ErrNoValidTransactions
	}

	reqs := make([]classification.Request, len(job.Candidates))
	for i, c := range job.Candidates {
		reqs[i] = classification.Request{Description: c.Description, Amount: c.Amount}
	}

	results, err := e.classifier.ClassifyAll(ctx, reqs)
	if err != nil {
		return 0, fmt.Errorf("classification failed: %w", err)
	}
	if len(results) != len(reqs) {
		return 0, fmt.Errorf("%w: got %d results for %d transactions",
			common.ErrClassificationFailed, len(results), len(reqs))
	}

	rows := make([]model.LedgerTransaction, len(job.Candidates))
	for i, c := range job.Candidates {
		result := results[i].Normalize()
		e.metrics.RecordClassification(string(result.Source))

		calc := e.calculator.Calculate(ctx, result.Category, result.Subcategory, c.Amount, result.Scope)
		e.metrics.RecordFactorResolution(calc.Path)
		e.metrics.RecordEmissions(int(result.Scope), calc.CO2Emissions)

		rows[i] = model.LedgerTransaction{
			ID:               e.newID(),
			UserID:           job.UserID,
			UploadID:         job.UploadID,
			Description:      c.Description,
			Amount:           c.Amount,
			Date:             c.Date,
			RawFields:        c.RawFields,
			Category:         result.Category,
			Subcategory:      result.Subcategory,
			Scope:            result.Scope,
			Confidence:       result.Confidence,
			Reasoning:        result.Reasoning,
			EmissionsFactor:  calc.EmissionsFactor,
			FactorUnit:       calc.Unit,
			FactorSource:     calc.Source,
			FactorConfidence: calc.Confidence,
			CO2Emissions:     calc.CO2Emissions,
			AIClassified:     result.AIClassified(),
			Verified:         result.AutoVerified(),
		}
	}

	if err := e.store.SaveLedgerTransactions(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to save ledger: %w", err)
	}
	if err := e.store.CompleteUpload(ctx, job.UploadID, len(rows)); err != nil {
		return 0, fmt.Errorf("failed to complete upload: %w", err)
	}
	return len(rows), nil
}

// CorrectTransaction applies a human correction to a ledger row. Emissions are
// recomputed for the new classification and the row becomes verified.
func (e *Engine) CorrectTransaction(ctx context.Context, id string, correction service.TransactionCorrection) (*model.LedgerTransaction, error) {
	if correction.Category == "" {
		return nil, fmt.Errorf("%w: category is required", common.ErrInvalidInput)
	}
	if correction.Scope != nil && !correction.Scope.Valid() {
		return nil, fmt.Errorf("%w: scope %d", common.ErrInvalidInput, *correction.Scope)
	}

	txn, err := e.store.GetLedgerTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	txn.Category = correction.Category
	if correction.Subcategory != nil {
		txn.Subcategory = *correction.Subcategory
	}
	if correction.Scope != nil {
		txn.Scope = *correction.Scope
	}

	calc := e.calculator.Calculate(ctx, txn.Category, txn.Subcategory, txn.Amount, txn.Scope)
	e.metrics.RecordFactorResolution(calc.Path)

	txn.EmissionsFactor = calc.EmissionsFactor
	txn.FactorUnit = calc.Unit
	txn.FactorSource = calc.Source
	txn.FactorConfidence = calc.Confidence
	txn.CO2Emissions = calc.CO2Emissions
	txn.Confidence = 1
	txn.Reasoning = ManualReasoning
	txn.AIClassified = false

	if err := e.store.UpdateTransactionClassification(ctx, txn); err != nil {
		return nil, err
	}

	common.LogInfo("Transaction corrected", common.Fields{
		"id":       id,
		"category": txn.Category,
		"scope":    int(txn.Scope),
		"co2_kg":   txn.CO2Emissions,
	})
	return txn, nil
}

// VerifyTransaction marks a ledger row as confirmed by a person.
func (e *Engine) VerifyTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error) {
	if err := e.store.VerifyTransaction(ctx, id); err != nil {
		return nil, err
	}
	return e.store.GetLedgerTransaction(ctx, id)
}
