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

const reportColumns = `id, user_id, title, company_name, period_start, period_end, status,
	total_emissions, scope1_emissions, scope2_emissions, scope3_emissions, narrative, xbrl,
	valid, error_message, created_at`

// SaveReport inserts or replaces a report record.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *model.Report) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	if err := validateString(report.ID, "report.ID"); err != nil {
		return err
	}
	if err := validateString(report.Title, "report.Title"); err != nil {
		return err
	}
	if report.PeriodEnd.Before(report.PeriodStart) {
		return fmt.Errorf("%w: report period", ErrInvalidDateRange)
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.UserID, report.Title, report.CompanyName,
		report.PeriodStart.UTC(), report.PeriodEnd.UTC(), string(report.Status),
		report.TotalEmissions, report.Scope1, report.Scope2, report.Scope3,
		report.Narrative, report.XBRL, report.Valid, report.ErrorMessage, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport returns a report by ID including its rendered documents.
func (s *SQLiteStorage) GetReport(ctx context.Context, id string) (*model.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// GetUserReports lists a user's reports, newest first.
func (s *SQLiteStorage) GetUserReports(ctx context.Context, userID string) ([]model.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []model.Report
	for rows.Next() {
		report, scanErr := scanReport(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan report: %w", scanErr)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func scanReport(row rowScanner) (*model.Report, error) {
	var (
		report    model.Report
		status    string
		company   sql.NullString
		narrative sql.NullString
		xbrl      sql.NullString
		errMsg    sql.NullString
	)

	err := row.Scan(&report.ID, &report.UserID, &report.Title, &company, &report.PeriodStart,
		&report.PeriodEnd, &status, &report.TotalEmissions, &report.Scope1, &report.Scope2,
		&report.Scope3, &narrative, &xbrl, &report.Valid, &errMsg, &report.CreatedAt)
	if err != nil {
		return nil, err
	}

	report.Status = model.ReportStatus(status)
	report.CompanyName = company.String
	report.Narrative = narrative.String
	report.XBRL = xbrl.String
	report.ErrorMessage = errMsg.String
	return &report, nil
}
