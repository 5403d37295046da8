// Package report renders a ledger snapshot into a paginated narrative document
// and an XBRL instance, and validates XBRL instances.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
)

// ToolName identifies this software in generated documents.
const ToolName = "Carbon Must Flow"

// Methodology describes how the figures were produced.
type Methodology struct {
	Framework         string
	EmissionFactors   string
	CalculationMethod string
}

// DefaultMethodology is the methodology statement for spend-based ledgers.
func DefaultMethodology() Methodology {
	return Methodology{
		Framework:         "GHG Protocol Corporate Standard",
		EmissionFactors:   "DEFRA 2024 + Climatiq Database",
		CalculationMethod: "Spend-based approach with AI classification",
	}
}

// Entity identifies the reporting company.
type Entity struct {
	Name       string
	Identifier string
	Currency   string
}

// Snapshot is everything a report renders, captured at one instant.
type Snapshot struct {
	GeneratedAt  time.Time
	Period       service.DateRange
	Entity       Entity
	Methodology  Methodology
	ReportID     string
	Title        string
	Tool         string
	Transactions []model.LedgerTransaction
	Scopes       []analytics.ScopeBreakdown
	Summary      analytics.Summary
}

// NewSnapshot aggregates txns into a snapshot for entity over period.
func NewSnapshot(reportID, title string, entity Entity, period service.DateRange, txns []model.LedgerTransaction, generatedAt time.Time) Snapshot {
	if entity.Currency == "" {
		entity.Currency = "EUR"
	}
	return Snapshot{
		ReportID:     reportID,
		Title:        title,
		Entity:       entity,
		Period:       period,
		GeneratedAt:  generatedAt.UTC(),
		Methodology:  DefaultMethodology(),
		Tool:         ToolName,
		Transactions: txns,
		Summary:      analytics.Summarize(txns),
		Scopes:       analytics.AnalyzeScopes(txns),
	}
}

// PeriodLabel renders the period as "YYYY-MM-DD to YYYY-MM-DD".
func (s Snapshot) PeriodLabel() string {
	return s.Period.Start.Format("2006-01-02") + " to " + s.Period.End.Format("2006-01-02")
}

// Store is the persistence the Generator needs.
type Store interface {
	GetLedgerTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.LedgerTransaction, error)
	SaveReport(ctx context.Context, report *model.Report) error
}

// Generator builds, validates and persists reports.
type Generator struct {
	store     Store
	narrative Narrative
	now       func() time.Time
	newID     func() string
}

// NewGenerator creates a generator. newID supplies report identifiers.
func NewGenerator(store Store, newID func() string) *Generator {
	return &Generator{
		store:     store,
		narrative: Narrative{},
		now:       time.Now,
		newID:     newID,
	}
}

// Request describes a report to generate.
type Request struct {
	Period service.DateRange
	Entity Entity
	UserID string
	Title  string
}

// Generate renders both documents for the user's ledger in req.Period and
// saves the report. An invalid XBRL instance yields a failed report that is
// still saved and returned.
func (g *Generator) Generate(ctx context.Context, req Request) (*model.Report, error) {
	now := g.now().UTC()
	if req.Period.End.IsZero() {
		req.Period.End = now
	}
	if req.Period.Start.IsZero() {
		req.Period.Start = time.Date(req.Period.End.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if req.Title == "" {
		req.Title = fmt.Sprintf("GHG Emissions Report %s", req.Period.End.Format("2006"))
	}

	start, end := req.Period.Start, req.Period.End
	txns, err := g.store.GetLedgerTransactions(ctx, service.TransactionFilter{
		UserID:    req.UserID,
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	snap := NewSnapshot(g.newID(), req.Title, req.Entity, req.Period, txns, now)
	xbrl, err := MarshalXBRL(snap)
	if err != nil {
		return nil, err
	}
	validation := ValidateXBRL(xbrl)

	rep := &model.Report{
		ID:             snap.ReportID,
		UserID:         req.UserID,
		Title:          req.Title,
		CompanyName:    req.Entity.Name,
		PeriodStart:    req.Period.Start,
		PeriodEnd:      req.Period.End,
		Status:         model.ReportCompleted,
		Narrative:      g.narrative.Render(snap),
		XBRL:           string(xbrl),
		TotalEmissions: snap.Summary.Total,
		Scope1:         snap.Summary.Scope1,
		Scope2:         snap.Summary.Scope2,
		Scope3:         snap.Summary.Scope3,
		Valid:          validation.Valid,
		CreatedAt:      now,
	}
	if !validation.Valid {
		rep.Status = model.ReportFailed
		rep.ErrorMessage = validation.Errors[0]
	}

	if err := g.store.SaveReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return rep, nil
}
