package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// Narrative layout constants.
const (
	DefaultLinesPerPage = 50
	TopTransactions     = 10
	DescriptionWidth    = 30
	PageBreak           = "\f"
)

// Narrative renders the human-readable report as fixed-height text pages.
type Narrative struct {
	// LinesPerPage includes the blank line and pagination footer.
	LinesPerPage int
}

var scopeDetails = map[model.Scope]struct {
	title   string
	intro   string
	sources []string
}{
	model.Scope1: {
		title:   "Scope 1: Direct Emissions",
		intro:   "Direct emissions from owned or controlled sources including:",
		sources: []string{"Company vehicles and fleet operations", "Fuel combustion in stationary sources", "Fugitive emissions from refrigerants"},
	},
	model.Scope2: {
		title:   "Scope 2: Energy Indirect Emissions",
		intro:   "Indirect emissions from purchased energy including:",
		sources: []string{"Purchased electricity consumption", "Purchased heating and cooling", "Purchased steam"},
	},
	model.Scope3: {
		title:   "Scope 3: Other Indirect Emissions",
		intro:   "Other indirect emissions in the value chain including:",
		sources: []string{"Business travel and accommodation", "Employee commuting", "Purchased goods and services", "Waste disposal"},
	},
}

// Render joins the pages with form feeds.
func (n Narrative) Render(s Snapshot) string {
	return strings.Join(n.Pages(s), PageBreak)
}

// Pages lays out every section, starting each on a new page, and stamps
// "Page i of N" at the bottom of every page.
func (n Narrative) Pages(s Snapshot) []string {
	height := n.LinesPerPage
	if height <= 0 {
		height = DefaultLinesPerPage
	}
	body := max(1, height-2)

	sections := [][]string{
		append(headerSection(s), summarySection(s)...),
		breakdownSection(s),
		methodologySection(s),
		transactionSection(s),
		verificationSection(s),
	}

	var pages [][]string
	for _, lines := range sections {
		for len(lines) > body {
			pages = append(pages, lines[:body])
			lines = lines[body:]
		}
		pages = append(pages, lines)
	}

	out := make([]string, len(pages))
	for i, lines := range pages {
		page := make([]string, 0, height)
		page = append(page, lines...)
		for len(page) < body {
			page = append(page, "")
		}
		page = append(page, "", fmt.Sprintf("Page %d of %d", i+1, len(pages)))
		out[i] = strings.Join(page, "\n") + "\n"
	}
	return out
}

func headerSection(s Snapshot) []string {
	return []string{
		s.Tool,
		"ESG Reporting Platform",
		"",
		"Corporate Sustainability Report",
		s.Title,
		"",
		"Company: " + s.Entity.Name,
		"Period: " + s.PeriodLabel(),
		"Report Date: " + s.GeneratedAt.Format("2006-01-02"),
		"Report ID: " + s.ReportID,
		strings.Repeat("-", 72),
		"",
	}
}

func summarySection(s Snapshot) []string {
	sum := s.Summary
	lines := []string{
		"Executive Summary",
		"",
		"This report presents the greenhouse gas (GHG) emissions inventory for " + s.Entity.Name,
		"for the period " + s.PeriodLabel() + ", prepared in accordance with the GHG Protocol",
		"Corporate Accounting and Reporting Standard and CSRD requirements.",
		"",
		"Key Findings:",
		fmt.Sprintf("  * Total GHG Emissions: %.1f kg CO2e (%.2f tonnes)", sum.Total, sum.Total/1000),
	}
	labels := map[model.Scope]string{
		model.Scope1: "Scope 1 (Direct)",
		model.Scope2: "Scope 2 (Energy Indirect)",
		model.Scope3: "Scope 3 (Other Indirect)",
	}
	for _, scope := range model.Scopes {
		lines = append(lines, fmt.Sprintf("  * %s: %.1f kg CO2e (%.1f%%)",
			labels[scope], sum.ScopeTotal(scope), sum.ScopePercent(scope)))
	}
	return append(lines, fmt.Sprintf("  * Transactions analysed: %d (%d verified)", sum.Count, sum.Verified))
}

func breakdownSection(s Snapshot) []string {
	lines := []string{"Emissions Breakdown by Scope", ""}
	for _, b := range s.Scopes {
		d := scopeDetails[b.Scope]
		lines = append(lines, d.title, d.intro)
		for _, src := range d.sources {
			lines = append(lines, "  * "+src)
		}
		lines = append(lines, fmt.Sprintf("Total %s: %.1f kg CO2e", b.Scope, b.Total))
		for i, c := range b.Categories {
			if i == 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("  %s: %.1f kg CO2e (%.1f%% of %s)", c.Category, c.Emissions, c.Percentage, b.Scope))
		}
		lines = append(lines, "")
	}
	return lines
}

func methodologySection(s Snapshot) []string {
	return []string{
		"Methodology",
		"",
		"This GHG inventory has been prepared using the following methodology:",
		"  * Organizational Boundary: Operational control approach",
		"  * Operational Boundary: All material emission sources identified",
		"  * Base Year: Current reporting period",
		"  * GHG Protocol: " + s.Methodology.Framework,
		"  * Emission Factors: " + s.Methodology.EmissionFactors,
		"  * Calculation: " + s.Methodology.CalculationMethod,
		"",
		"Data Sources:",
		"  * Financial transaction records (expense reports, invoices)",
		"  * Energy bills and utility statements",
		"  * Travel booking systems and receipts",
		"  * Fuel purchase records",
		"",
		"Limitations and Assumptions:",
		"  * Some Scope 3 emissions may not be captured due to data limitations",
		"  * Spend is converted to activity data using average prices",
		"  * Transactions below the verification threshold require manual review",
	}
}

// Truncate shortens a description to DescriptionWidth runes plus "...".
func Truncate(desc string) string {
	r := []rune(desc)
	if len(r) <= DescriptionWidth {
		return desc
	}
	return string(r[:DescriptionWidth]) + "..."
}

// TopByEmissions returns the n highest-emitting rows of one scope.
func TopByEmissions(txns []model.LedgerTransaction, scope model.Scope, n int) []model.LedgerTransaction {
	var rows []model.LedgerTransaction
	for i := range txns {
		if txns[i].Scope == scope {
			rows = append(rows, txns[i])
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CO2Emissions > rows[j].CO2Emissions
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func transactionSection(s Snapshot) []string {
	lines := []string{"Transaction Summary", ""}
	for _, scope := range model.Scopes {
		top := TopByEmissions(s.Transactions, scope, TopTransactions)
		if len(top) == 0 {
			continue
		}
		lines = append(lines,
			scope.String()+" Transactions",
			fmt.Sprintf("%-33s %12s %10s %10s", "Description", "Amount (EUR)", "CO2e (kg)", "Date"),
			strings.Repeat("-", 68),
		)
		for _, t := range top {
			lines = append(lines, fmt.Sprintf("%-33s %12.2f %10.1f %10s",
				Truncate(t.Description), t.Amount, t.CO2Emissions, t.Date.Format("2006-01-02")))
		}
		lines = append(lines, "")
	}
	return lines
}

func verificationSection(s Snapshot) []string {
	return []string{
		"Verification and Compliance",
		"",
		"This report has been prepared in accordance with:",
		"  * The GHG Protocol Corporate Accounting and Reporting Standard",
		"  * Corporate Sustainability Reporting Directive (CSRD)",
		"  * European Sustainability Reporting Standards (ESRS)",
		"",
		"Data Accuracy Statement:",
		fmt.Sprintf("%d of %d transactions are verified, either automatically above %.0f%% classification",
			s.Summary.Verified, s.Summary.Count, model.VerifiedThreshold*100),
		"confidence or by manual review. Factors come from DEFRA and other recognized sources.",
		"",
		fmt.Sprintf("Report generated by %s on %s", s.Tool, s.GeneratedAt.Format("2006-01-02")),
		"Report ID: " + s.ReportID,
	}
}
