package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

const factorColumns = `id, category, subcategory, scope, factor, unit, source, year, description, created_at`

// CountEmissionFactors returns the number of stored factors.
func (s *SQLiteStorage) CountEmissionFactors(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emission_factors`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count emission factors: %w", err)
	}
	return count, nil
}

// GetEmissionFactors lists the whole factor catalogue.
func (s *SQLiteStorage) GetEmissionFactors(ctx context.Context) ([]model.EmissionFactor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+factorColumns+` FROM emission_factors ORDER BY scope, category, subcategory, year DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query emission factors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var factors []model.EmissionFactor
	for rows.Next() {
		factor, scanErr := scanFactor(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan emission factor: %w", scanErr)
		}
		factors = append(factors, *factor)
	}
	return factors, rows.Err()
}

// GetEmissionFactor returns the most recent factor for an exact category and subcategory.
func (s *SQLiteStorage) GetEmissionFactor(ctx context.Context, category, subcategory string) (*model.EmissionFactor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(category, "category"); err != nil {
		return nil, err
	}

	return s.getEmissionFactorTx(ctx, s.db, category, subcategory)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStorage) getEmissionFactorTx(ctx context.Context, q queryer, category, subcategory string) (*model.EmissionFactor, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+factorColumns+` FROM emission_factors
		WHERE category = ? AND subcategory = ?
		ORDER BY year DESC, id DESC
		LIMIT 1`, category, subcategory)

	factor, err := scanFactor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("emission factor %s/%s: %w", category, subcategory, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get emission factor: %w", err)
	}
	return factor, nil
}

// CreateEmissionFactor inserts a new factor. A duplicate (category, subcategory, year)
// yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateEmissionFactor(ctx context.Context, factor *model.EmissionFactor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFactor(factor); err != nil {
		return err
	}

	if factor.CreatedAt.IsZero() {
		factor.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO emission_factors (category, subcategory, scope, factor, unit, source, year, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (category, subcategory, year) DO NOTHING`,
		factor.Category, factor.Subcategory, int(factor.Scope), factor.Factor, factor.Unit,
		factor.Source, factor.Year, factor.Description, factor.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create emission factor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("emission factor %s/%s/%d: %w", factor.Category, factor.Subcategory, factor.Year, common.ErrDuplicateEntry)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read emission factor id: %w", err)
	}
	factor.ID = id
	return nil
}

// GetOrCreateEmissionFactor returns the stored factor for the same category, subcategory
// and year, inserting factor first if none exists. Concurrent callers converge on one row.
func (s *SQLiteStorage) GetOrCreateEmissionFactor(ctx context.Context, factor *model.EmissionFactor) (*model.EmissionFactor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFactor(factor); err != nil {
		return nil, err
	}

	createdAt := factor.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var stored *model.EmissionFactor
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO emission_factors (category, subcategory, scope, factor, unit, source, year, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (category, subcategory, year) DO NOTHING`,
			factor.Category, factor.Subcategory, int(factor.Scope), factor.Factor, factor.Unit,
			factor.Source, factor.Year, factor.Description, createdAt)
		if execErr != nil {
			return fmt.Errorf("failed to insert emission factor: %w", execErr)
		}

		row := tx.QueryRowContext(ctx, `
			SELECT `+factorColumns+` FROM emission_factors
			WHERE category = ? AND subcategory = ? AND year = ?`,
			factor.Category, factor.Subcategory, factor.Year)

		var scanErr error
		stored, scanErr = scanFactor(row)
		if scanErr != nil {
			return fmt.Errorf("failed to read emission factor: %w", scanErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func scanFactor(row rowScanner) (*model.EmissionFactor, error) {
	var (
		factor      model.EmissionFactor
		scope       int
		description sql.NullString
	)

	err := row.Scan(&factor.ID, &factor.Category, &factor.Subcategory, &scope, &factor.Factor,
		&factor.Unit, &factor.Source, &factor.Year, &description, &factor.CreatedAt)
	if err != nil {
		return nil, err
	}

	factor.Scope = model.ParseScope(scope)
	factor.Description = description.String
	return &factor, nil
}
