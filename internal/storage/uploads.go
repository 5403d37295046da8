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

const uploadColumns = `id, user_id, filename, file_size, status, total_rows, processed_rows,
	error_message, created_at, completed_at`

// CreateUpload records a new batch in the processing state.
func (s *SQLiteStorage) CreateUpload(ctx context.Context, upload *model.UploadBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUpload(upload); err != nil {
		return err
	}

	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, user_id, filename, file_size, status, total_rows, processed_rows, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		upload.ID, upload.UserID, upload.Filename, upload.FileSize,
		string(upload.Status), upload.TotalRows, upload.ProcessedRows, upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

// GetUpload returns a batch by ID.
func (s *SQLiteStorage) GetUpload(ctx context.Context, id string) (*model.UploadBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
	upload, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upload %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

// GetUserUploads lists a user's batches, newest first.
func (s *SQLiteStorage) GetUserUploads(ctx context.Context, userID string) ([]model.UploadBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var uploads []model.UploadBatch
	for rows.Next() {
		upload, scanErr := scanUpload(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", scanErr)
		}
		uploads = append(uploads, *upload)
	}
	return uploads, rows.Err()
}

// SetUploadTotalRows records how many data rows the batch contained.
func (s *SQLiteStorage) SetUploadTotalRows(ctx context.Context, id string, totalRows int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, id,
		`UPDATE uploads SET total_rows = ? WHERE id = ? AND status = 'processing'`,
		totalRows, id)
}

// CompleteUpload moves a processing batch to completed.
func (s *SQLiteStorage) CompleteUpload(ctx context.Context, id string, processedRows int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, id, `
		UPDATE uploads SET status = 'completed', processed_rows = ?, completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		processedRows, time.Now().UTC(), id)
}

// FailUpload moves a processing batch to failed with a message.
func (s *SQLiteStorage) FailUpload(ctx context.Context, id string, message string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, id, `
		UPDATE uploads SET status = 'failed', error_message = ?, completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		message, time.Now().UTC(), id)
}

// transition applies an update guarded by the processing state.
// Terminal batches are never modified.
func (s *SQLiteStorage) transition(ctx context.Context, id, query string, args ...any) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	upload, err := s.GetUpload(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: upload %s is %s", ErrInvalidStatus, id, upload.Status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*model.UploadBatch, error) {
	var (
		upload      model.UploadBatch
		status      string
		errMsg      sql.NullString
		completedAt sql.NullTime
	)

	err := row.Scan(&upload.ID, &upload.UserID, &upload.Filename, &upload.FileSize, &status,
		&upload.TotalRows, &upload.ProcessedRows, &errMsg, &upload.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	upload.Status = model.BatchStatus(status)
	upload.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		upload.CompletedAt = &t
	}
	return &upload, nil
}
