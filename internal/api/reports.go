package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/metrics"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/report"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/labstack/echo/v4"
)

// ReportRequest is the body of POST /api/reports. Dates are YYYY-MM-DD or RFC 3339.
type ReportRequest struct {
	Title       string `json:"title"`
	CompanyName string `json:"companyName"`
	Identifier  string `json:"identifier"`
	Currency    string `json:"currency"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

func (r ReportRequest) period() (service.DateRange, error) {
	var period service.DateRange
	if r.StartDate != "" {
		t, err := parseDate(r.StartDate, false)
		if err != nil {
			return period, err
		}
		period.Start = t
	}
	if r.EndDate != "" {
		t, err := parseDate(r.EndDate, true)
		if err != nil {
			return period, err
		}
		period.End = t
	}
	if !period.Start.IsZero() && !period.End.IsZero() && period.End.Before(period.Start) {
		return period, fmt.Errorf("%w: endDate is before startDate", common.ErrInvalidInput)
	}
	return period, nil
}

func (s *Server) createReport(c echo.Context) error {
	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed body", common.ErrInvalidInput)
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		return fmt.Errorf("%w: companyName is required", common.ErrInvalidInput)
	}
	period, err := req.period()
	if err != nil {
		return err
	}

	rep, err := s.deps.Reports.Generate(c.Request().Context(), report.Request{
		UserID: userID(c),
		Title:  req.Title,
		Period: period,
		Entity: report.Entity{
			Name:       req.CompanyName,
			Identifier: req.Identifier,
			Currency:   req.Currency,
		},
	})
	if err != nil {
		s.deps.Metrics.RecordReport(metrics.StatusFailed)
		return err
	}
	s.deps.Metrics.RecordReport(string(rep.Status))
	return c.JSON(http.StatusCreated, rep)
}

func (s *Server) listReports(c echo.Context) error {
	reports, err := s.deps.Store.GetUserReports(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return c.JSON(http.StatusOK, reports)
}

func (s *Server) downloadReport(c echo.Context) error {
	id := c.Param("id")
	rep, err := s.deps.Store.GetReport(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if rep.UserID != userID(c) {
		return fmt.Errorf("report %s: %w", id, common.ErrNotFound)
	}

	switch format := c.QueryParam("format"); format {
	case "", "text":
		c.Response().Header().Set(echo.HeaderContentDisposition, attachment(rep.ID+".txt"))
		return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, []byte(rep.Narrative))
	case "xbrl":
		c.Response().Header().Set(echo.HeaderContentDisposition, attachment(rep.ID+".xbrl"))
		return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(rep.XBRL))
	default:
		return fmt.Errorf("%w: format must be text or xbrl, got %q", common.ErrInvalidInput, format)
	}
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
