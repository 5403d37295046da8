package api

import (
	"fmt"
	"net/http"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/labstack/echo/v4"
)

func (s *Server) listTransactions(c echo.Context) error {
	period, err := dateRange(c)
	if err != nil {
		return err
	}
	scope, err := queryScope(c)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}

	filter := service.TransactionFilter{
		UserID:   userID(c),
		UploadID: c.QueryParam("uploadId"),
		Category: c.QueryParam("category"),
		Scope:    scope,
		Limit:    limit,
		Offset:   offset,
	}
	if !period.Start.IsZero() {
		filter.StartDate = &period.Start
	}
	if !period.End.IsZero() {
		filter.EndDate = &period.End
	}

	txns, err := s.deps.Store.GetLedgerTransactions(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if txns == nil {
		txns = []model.LedgerTransaction{}
	}
	return c.JSON(http.StatusOK, txns)
}

// requireOwnTransaction hides rows belonging to other users behind a 404.
func (s *Server) requireOwnTransaction(c echo.Context, id string) error {
	txn, err := s.deps.Store.GetLedgerTransaction(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if txn.UserID != userID(c) {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *Server) verifyTransaction(c echo.Context) error {
	if err := s.requireOwnTransaction(c, c.Param("id")); err != nil {
		return err
	}
	txn, err := s.deps.Engine.VerifyTransaction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, txn)
}

// CorrectionRequest is the body of PUT /api/transactions/:id.
type CorrectionRequest struct {
	Subcategory *string `json:"subcategory"`
	Scope       *int    `json:"scope"`
	Category    string  `json:"category"`
}

func (s *Server) correctTransaction(c echo.Context) error {
	if err := s.requireOwnTransaction(c, c.Param("id")); err != nil {
		return err
	}

	var req CorrectionRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed body", common.ErrInvalidInput)
	}

	correction := service.TransactionCorrection{
		Category:    req.Category,
		Subcategory: req.Subcategory,
	}
	if req.Scope != nil {
		scope := model.Scope(*req.Scope)
		correction.Scope = &scope
	}

	txn, err := s.deps.Engine.CorrectTransaction(c.Request().Context(), c.Param("id"), correction)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, txn)
}

func (s *Server) listFactors(c echo.Context) error {
	factors, err := s.deps.Store.GetEmissionFactors(c.Request().Context())
	if err != nil {
		return err
	}
	if factors == nil {
		factors = []model.EmissionFactor{}
	}
	return c.JSON(http.StatusOK, factors)
}
