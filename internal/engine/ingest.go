package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/document"
	"github.com/Veraticus/the-carbon-must-flow/internal/metrics"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/ofx"
	"github.com/Veraticus/the-carbon-must-flow/internal/parser"
)

// NoValidRowsMessage is stored on uploads in which no row survived parsing.
const NoValidRowsMessage = "No valid transactions found in CSV"

// Ingestion errors.
var (
	ErrNoValidTransactions = errors.New("no valid transactions found")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
)

// Format is an accepted upload file format.
type Format string

// Accepted formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatOFX  Format = "ofx"
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

// DetectFormat picks the format from the filename extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".ofx", ".qfx":
		return FormatOFX, nil
	case ".pdf":
		return FormatPDF, nil
	case ".txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Submitter accepts a job for processing.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// Upload is a file handed to Ingest.
type Upload struct {
	UserID   string
	Filename string
	Data     []byte
}

// IngestResult reports what parsing found. Document uploads also carry the
// extraction confidence.
type IngestResult struct {
	Upload     *model.UploadBatch `json:"upload"`
	Format     Format             `json:"format"`
	Errors     []string           `json:"errors"`
	TotalRows  int                `json:"totalRows"`
	ValidRows  int                `json:"validRows"`
	Duplicates int                `json:"duplicates"`
	Confidence float64            `json:"confidence,omitempty"`
}

// Ingest parses an upload, records the batch and hands its candidates to sub.
//
// Structural problems return an error wrapping parser.ErrStructural before any
// batch exists. When no row is valid the batch is created and immediately
// failed, and both the result and ErrNoValidTransactions are returned.
// Candidates matching rows already in the user's ledger are still ingested and
// counted in Duplicates.
func (e *Engine) Ingest(ctx context.Context, sub Submitter, up Upload) (*IngestResult, error) {
	if strings.TrimSpace(up.Filename) == "" {
		return nil, fmt.Errorf("%w: missing filename", common.ErrInvalidInput)
	}
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrInvalidInput)
	}

	format, err := DetectFormat(up.Filename)
	if err != nil {
		return nil, err
	}

	result, candidates, err := e.parse(ctx, format, up.Data)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordRows(result.ValidRows, result.TotalRows-result.ValidRows)

	batch := &model.UploadBatch{
		ID:       e.newID(),
		UserID:   up.UserID,
		Filename: filepath.Base(up.Filename),
		FileSize: int64(len(up.Data)),
		Status:   model.BatchProcessing,
	}
	if err := e.store.CreateUpload(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}
	result.Upload = batch

	if err := e.store.SetUploadTotalRows(ctx, batch.ID, result.TotalRows); err != nil {
		return nil, fmt.Errorf("failed to record row count: %w", err)
	}
	batch.TotalRows = result.TotalRows

	if len(candidates) == 0 {
		if err := e.store.FailUpload(ctx, batch.ID, NoValidRowsMessage); err != nil {
			return nil, fmt.Errorf("failed to mark upload failed: %w", err)
		}
		batch.Status = model.BatchFailed
		batch.ErrorMessage = NoValidRowsMessage
		return result, ErrNoValidTransactions
	}

	result.Duplicates = e.countDuplicates(ctx, up.UserID, candidates)

	e.logger.Info("Upload accepted",
		"upload_id", batch.ID,
		"filename", batch.Filename,
		"format", format,
		"total_rows", result.TotalRows,
		"valid_rows", result.ValidRows,
		"duplicates", result.Duplicates)

	job := Job{
		SubmittedAt: e.now(),
		UploadID:    batch.ID,
		UserID:      up.UserID,
		Candidates:  candidates,
	}
	if err := sub.Submit(ctx, job); err != nil {
		message := fmt.Sprintf("failed to queue batch: %v", err)
		if failErr := e.store.FailUpload(context.WithoutCancel(ctx), batch.ID, message); failErr != nil {
			e.logger.Error("Failed to mark unqueued upload failed", "upload_id", batch.ID, "error", failErr)
		} else {
			batch.Status = model.BatchFailed
			batch.ErrorMessage = message
		}
		e.metrics.RecordBatch(metrics.StatusFailed, 0)
		return result, fmt.Errorf("failed to submit batch %s: %w", batch.ID, err)
	}
	return result, nil
}

// countDuplicates counts candidates whose content already exists in the ledger.
// A failed lookup only costs the count.
func (e *Engine) countDuplicates(ctx context.Context, userID string, candidates []model.CandidateTransaction) int {
	hashes := make([]string, len(candidates))
	for i, c := range candidates {
		hashes[i] = c.ContentHash(userID)
	}
	existing, err := e.store.ExistingHashes(ctx, hashes)
	if err != nil {
		e.logger.Warn("Duplicate check failed", "error", err)
		return 0
	}

	n := 0
	for _, h := range hashes {
		if existing[h] {
			n++
		}
	}
	return n
}

func (e *Engine) parse(ctx context.Context, format Format, data []byte) (*IngestResult, []model.CandidateTransaction, error) {
	var (
		parsed *parser.Result
		err    error
	)

	switch format {
	case FormatCSV:
		parsed, err = parser.Parse(data)
	case FormatXLSX:
		parsed, err = parser.ParseWorkbook(bytes.NewReader(data))
	case FormatOFX:
		parsed, err = ofx.NewParser().Parse(ctx, bytes.NewReader(data))
	case FormatPDF, FormatText:
		return e.extract(format, data)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, nil, err
	}

	return &IngestResult{
		Format:    format,
		TotalRows: parsed.TotalRows,
		ValidRows: parsed.ValidRows,
		Errors:    parsed.ErrorMessages(),
	}, parsed.Transactions, nil
}

func (e *Engine) extract(format Format, data []byte) (*IngestResult, []model.CandidateTransaction, error) {
	var (
		doc document.Result
		err error
	)
	if format == FormatPDF {
		doc, err = document.ExtractPDF(data)
		if err != nil {
			return nil, nil, err
		}
	} else {
		doc = document.Extract(string(data))
	}

	candidates := doc.ToCandidates(e.now())
	return &IngestResult{
		Format:     format,
		TotalRows:  len(doc.Expenses),
		ValidRows:  len(candidates),
		Errors:     doc.Errors,
		Confidence: doc.Confidence,
	}, candidates, nil
}
