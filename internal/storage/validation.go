// Package storage provides the SQLite persistence layer for the emissions ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrEmptySlice          = errors.New("slice cannot be empty")
	ErrInvalidDateRange    = errors.New("start date must be before end date")
	ErrInvalidStatus       = errors.New("invalid batch status transition")
	ErrInvalidTransaction  = errors.New("invalid ledger transaction")
	ErrInvalidFactor       = errors.New("invalid emission factor")
	ErrInvalidUpload       = errors.New("invalid upload batch")
	ErrTransactionVerified = errors.New("transaction already verified")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateUpload(upload *model.UploadBatch) error {
	if upload == nil {
		return fmt.Errorf("%w: upload", ErrNilParameter)
	}
	if upload.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidUpload)
	}
	if strings.TrimSpace(upload.Filename) == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidUpload)
	}
	if upload.Status != model.BatchProcessing {
		return fmt.Errorf("%w: new batches start as %s", ErrInvalidUpload, model.BatchProcessing)
	}
	return nil
}

// validateLedgerTransactions validates a slice of ledger rows.
func validateLedgerTransactions(transactions []model.LedgerTransaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateLedgerTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateLedgerTransaction(txn *model.LedgerTransaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UploadID == "" {
		return fmt.Errorf("%w: missing upload ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if len(strings.TrimSpace(txn.Description)) < model.MinDescriptionLength {
		return fmt.Errorf("%w: description too short", ErrInvalidTransaction)
	}
	if txn.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if txn.CO2Emissions < 0 {
		return fmt.Errorf("%w: negative emissions", ErrInvalidTransaction)
	}
	if !txn.Scope.Valid() {
		return fmt.Errorf("%w: scope %d", ErrInvalidTransaction, txn.Scope)
	}
	if txn.Confidence < 0 || txn.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTransaction)
	}
	return nil
}

func validateFactor(factor *model.EmissionFactor) error {
	if factor == nil {
		return fmt.Errorf("%w: factor", ErrNilParameter)
	}
	if strings.TrimSpace(factor.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidFactor)
	}
	if factor.Factor <= 0 {
		return fmt.Errorf("%w: factor must be positive", ErrInvalidFactor)
	}
	if !factor.Scope.Valid() {
		return fmt.Errorf("%w: scope %d", ErrInvalidFactor, factor.Scope)
	}
	if strings.TrimSpace(factor.Unit) == "" {
		return fmt.Errorf("%w: missing unit", ErrInvalidFactor)
	}
	return nil
}
