package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/parser"
	"github.com/labstack/echo/v4"
)

// UploadResponse acknowledges an accepted upload. Processing continues in the
// background; poll GET /api/uploads/:id for the outcome.
type UploadResponse struct {
	UploadID   string            `json:"uploadId"`
	Status     model.BatchStatus `json:"status"`
	Format     engine.Format     `json:"format"`
	Errors     []string          `json:"errors"`
	TotalRows  int               `json:"totalRows"`
	ValidRows  int               `json:"validRows"`
	Duplicates int               `json:"duplicates"`
	Confidence float64           `json:"confidence,omitempty"`
}

func (s *Server) createUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes))
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	ctx := c.Request().Context()
	result, err := s.deps.Engine.Ingest(ctx, s.deps.Submitter, engine.Upload{
		UserID:   userID(c),
		Filename: fh.Filename,
		Data:     data,
	})

	var structural *parser.StructuralError
	switch {
	case errors.As(err, &structural):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid file structure",
			Errors:  structural.Reasons,
		})
	case errors.Is(err, engine.ErrNoValidTransactions):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "No valid transactions found",
			Errors:  result.Errors,
		})
	case err != nil:
		return err
	}

	return c.JSON(http.StatusAccepted, UploadResponse{
		UploadID:   result.Upload.ID,
		Status:     result.Upload.Status,
		Format:     result.Format,
		Errors:     result.Errors,
		TotalRows:  result.TotalRows,
		ValidRows:  result.ValidRows,
		Duplicates: result.Duplicates,
		Confidence: result.Confidence,
	})
}

func (s *Server) listUploads(c echo.Context) error {
	uploads, err := s.deps.Store.GetUserUploads(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	if uploads == nil {
		uploads = []model.UploadBatch{}
	}
	return c.JSON(http.StatusOK, uploads)
}

func (s *Server) getUpload(c echo.Context) error {
	id := c.Param("id")
	upload, err := s.deps.Store.GetUpload(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if upload.UserID != userID(c) {
		return fmt.Errorf("upload %s: %w", id, common.ErrNotFound)
	}
	return c.JSON(http.StatusOK, upload.StatusView())
}
