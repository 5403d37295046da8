package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
)

const ledgerColumns = `id, user_id, upload_id, description, amount, date, raw_fields,
	category, subcategory, scope, confidence, reasoning, emissions_factor, factor_unit,
	factor_source, factor_confidence, co2_emissions, ai_classified, verified, created_at`

// SaveLedgerTransactions writes all rows of a batch in one transaction.
// Either every row is committed or none is.
func (s *SQLiteStorage) SaveLedgerTransactions(ctx context.Context, transactions []model.LedgerTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLedgerTransactions(transactions); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveLedgerTransactionsTx(ctx, tx, transactions)
	})
}

func (s *SQLiteStorage) saveLedgerTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.LedgerTransaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_transactions (
			id, hash, user_id, upload_id, description, amount, date, raw_fields,
			category, subcategory, scope, confidence, reasoning, emissions_factor, factor_unit,
			factor_source, factor_confidence, co2_emissions, ai_classified, verified, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i := range transactions {
		txn := &transactions[i]
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = now
		}

		rawJSON := ""
		if len(txn.RawFields) > 0 {
			raw, marshalErr := json.Marshal(txn.RawFields)
			if marshalErr == nil {
				rawJSON = string(raw)
			}
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash(),
			txn.UserID,
			txn.UploadID,
			txn.Description,
			txn.Amount,
			txn.Date.UTC(),
			rawJSON,
			txn.Category,
			txn.Subcategory,
			int(txn.Scope),
			txn.Confidence,
			txn.Reasoning,
			txn.EmissionsFactor,
			txn.FactorUnit,
			txn.FactorSource,
			string(txn.FactorConfidence),
			txn.CO2Emissions,
			txn.AIClassified,
			txn.Verified,
			txn.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return nil
}

// GetLedgerTransaction returns a ledger row by ID.
func (s *SQLiteStorage) GetLedgerTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_transactions WHERE id = ?`, id)
	txn, err := scanLedgerTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetLedgerTransactions returns ledger rows matching the filter, newest first.
func (s *SQLiteStorage) GetLedgerTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.LedgerTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}

	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.UploadID != "" {
		clauses = append(clauses, "upload_id = ?")
		args = append(args, filter.UploadID)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Scope != nil {
		clauses = append(clauses, "scope = ?")
		args = append(args, int(*filter.Scope))
	}
	if filter.Unverified {
		clauses = append(clauses, "verified = 0")
	}
	if filter.StartDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, filter.EndDate.UTC())
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.LedgerTransaction
	for rows.Next() {
		txn, scanErr := scanLedgerTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// VerifyTransaction records a human confirmation of a ledger row.
func (s *SQLiteStorage) VerifyTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE ledger_transactions SET verified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to verify transaction: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// UpdateTransactionClassification stores an explicit correction of a ledger row.
// The corrected row is marked verified.
func (s *SQLiteStorage) UpdateTransactionClassification(ctx context.Context, txn *model.LedgerTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLedgerTransaction(txn); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE ledger_transactions SET
			category = ?, subcategory = ?, scope = ?, confidence = ?, reasoning = ?,
			emissions_factor = ?, factor_unit = ?, factor_source = ?, factor_confidence = ?,
			co2_emissions = ?, ai_classified = ?, verified = 1
		WHERE id = ?`,
		txn.Category, txn.Subcategory, int(txn.Scope), txn.Confidence, txn.Reasoning,
		txn.EmissionsFactor, txn.FactorUnit, txn.FactorSource, string(txn.FactorConfidence),
		txn.CO2Emissions, txn.AIClassified, txn.ID)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrNotFound)
	}
	txn.Verified = true
	return nil
}

func scanLedgerTransaction(row rowScanner) (*model.LedgerTransaction, error) {
	var (
		txn        model.LedgerTransaction
		rawJSON    sql.NullString
		reasoning  sql.NullString
		unit       sql.NullString
		source     sql.NullString
		confidence sql.NullString
		scope      int
	)

	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.UploadID, &txn.Description, &txn.Amount, &txn.Date, &rawJSON,
		&txn.Category, &txn.Subcategory, &scope, &txn.Confidence, &reasoning, &txn.EmissionsFactor,
		&unit, &source, &confidence, &txn.CO2Emissions, &txn.AIClassified, &txn.Verified, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Scope = model.ParseScope(scope)
	txn.Reasoning = reasoning.String
	txn.FactorUnit = unit.String
	txn.FactorSource = source.String
	txn.FactorConfidence = model.FactorConfidence(confidence.String)

	if rawJSON.Valid && rawJSON.String != "" {
		if err := json.Unmarshal([]byte(rawJSON.String), &txn.RawFields); err != nil {
			return nil, fmt.Errorf("failed to decode raw fields: %w", err)
		}
	}
	return &txn, nil
}

const hashLookupChunk = 500

// ExistingHashes reports which of hashes already belong to stored ledger rows.
func (s *SQLiteStorage) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	found := make(map[string]bool)
	for start := 0; start < len(hashes); start += hashLookupChunk {
		chunk := hashes[start:min(start+hashLookupChunk, len(hashes))]
		args := make([]any, len(chunk))
		for i, h := range chunk {
			args[i] = h
		}

		query := `SELECT DISTINCT hash FROM ledger_transactions WHERE hash IN (?` +
			strings.Repeat(",?", len(chunk)-1) + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to look up row hashes: %w", err)
		}
		for rows.Next() {
			var h string
			if err := rows.Scan(&h); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan row hash: %w", err)
			}
			found[h] = true
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to look up row hashes: %w", err)
		}
	}
	return found, nil
}
