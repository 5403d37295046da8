package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// maxListedErrors caps the row errors echoed after an import.
const maxListedErrors = 10

// RenderIngest summarizes one imported file.
func RenderIngest(filename string, r *engine.IngestResult, upload *model.UploadBatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File:       %s (%s)\n", filename, r.Format)
	fmt.Fprintf(&b, "Rows:       %d valid of %d\n", r.ValidRows, r.TotalRows)
	if r.Confidence > 0 {
		fmt.Fprintf(&b, "Confidence: %.0f%%\n", r.Confidence*100)
	}
	if r.Duplicates > 0 {
		fmt.Fprintf(&b, "Duplicates: %s\n", WarningStyle.Render(fmt.Sprintf("%d row(s) already in the ledger", r.Duplicates)))
	}
	if upload != nil {
		fmt.Fprintf(&b, "Upload:     %s\n", upload.ID)
		status := string(upload.Status)
		switch upload.Status {
		case model.BatchCompleted:
			status = SuccessStyle.Render(status)
		case model.BatchFailed:
			status = ErrorStyle.Render(status + ": " + upload.ErrorMessage)
		}
		fmt.Fprintf(&b, "Status:     %s\n", status)
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n" + WarningStyle.Render(fmt.Sprintf("%d row error(s):", len(r.Errors))) + "\n")
		for i, e := range r.Errors {
			if i == maxListedErrors {
				b.WriteString(SubtleStyle.Render(fmt.Sprintf("  … and %d more", len(r.Errors)-maxListedErrors)) + "\n")
				break
			}
			b.WriteString("  • " + e + "\n")
		}
	}
	return RenderBox(FactoryIcon+" Import", strings.TrimRight(b.String(), "\n"))
}

// RenderSummary shows scope totals and the category table.
func RenderSummary(s analytics.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total emissions: %s across %d transactions (%d verified)\n\n",
		BoldStyle.Render(FormatKg(s.Total)), s.Count, s.Verified)

	for _, scope := range model.Scopes {
		fmt.Fprintf(&b, "%s  %s  %5.1f%%\n", FormatScope(scope), FormatKg(s.ScopeTotal(scope)), s.ScopePercent(scope))
	}

	if len(s.ByCategory) > 0 {
		rows := make([][]string, 0, len(s.ByCategory))
		for _, c := range s.ByCategory {
			rows = append(rows, []string{
				c.Category,
				FormatScope(c.Scope),
				FormatKg(c.Emissions),
				fmt.Sprintf("€%.2f", c.Amount),
				fmt.Sprintf("%d", c.Count),
			})
		}
		b.WriteString("\n" + RenderTable([]string{"Category", "Scope", "Emissions", "Spend", "Count"}, rows))
	}
	return RenderBox(ChartIcon+" Emissions Summary", b.String())
}

// RenderTrend shows month-over-month emissions.
func RenderTrend(points []analytics.TrendPoint) string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		dir := string(p.Direction)
		switch p.Direction {
		case analytics.Increasing:
			dir = ErrorStyle.Render("▲ " + dir)
		case analytics.Decreasing:
			dir = SuccessStyle.Render("▼ " + dir)
		default:
			dir = SubtleStyle.Render("● " + dir)
		}
		rows = append(rows, []string{p.Period, FormatKg(p.Emissions), fmt.Sprintf("%+.1f%%", p.PercentageChange), dir})
	}
	return RenderBox(ChartIcon+" Emissions Trend", RenderTable([]string{"Month", "Emissions", "Change", "Trend"}, rows))
}

// RenderBudget shows progress against an annual target.
func RenderBudget(b analytics.Budget) string {
	verdict := SuccessStyle.Render(SuccessIcon + " on track")
	if !b.OnTrack {
		verdict = ErrorStyle.Render(ErrorIcon + " over budget")
	}
	content := fmt.Sprintf("Annual target:    %s\n", FormatKg(b.AnnualTarget)) +
		fmt.Sprintf("Year to date:     %s\n", FormatKg(b.CurrentEmissions)) +
		fmt.Sprintf("Remaining:        %s\n", FormatKg(b.RemainingBudget)) +
		fmt.Sprintf("Projected annual: %s\n", FormatKg(b.ProjectedAnnual)) +
		fmt.Sprintf("Days:             %d elapsed, %d remaining\n\n", b.DaysElapsed, b.DaysRemaining) +
		verdict
	return RenderBox("Carbon Budget", content)
}

// RenderBenchmark compares intensity against the sector average.
func RenderBenchmark(b analytics.Benchmark) string {
	perf := string(b.Performance)
	switch b.Performance {
	case analytics.AboveAverage:
		perf = SuccessStyle.Render(perf)
	case analytics.BelowAverage:
		perf = ErrorStyle.Render(perf)
	}
	content := fmt.Sprintf("Sector:            %s\n", b.Sector) +
		fmt.Sprintf("Company intensity: %.4f %s\n", b.CompanyIntensity, analytics.IntensityUnit) +
		fmt.Sprintf("Sector average:    %.4f %s\n", b.AverageIntensity, analytics.IntensityUnit) +
		fmt.Sprintf("Ratio:             %.2f\n", b.Ratio) +
		fmt.Sprintf("Performance:       %s (percentile %d)", perf, b.Percentile)
	return RenderBox("Sector Benchmark", content)
}

// RenderOpportunities lists reduction opportunities by ROI.
func RenderOpportunities(ops []analytics.Opportunity) string {
	if len(ops) == 0 {
		return FormatInfo("No category exceeds the materiality threshold.")
	}
	rows := make([][]string, 0, len(ops))
	for _, o := range ops {
		rows = append(rows, []string{
			o.Category,
			FormatKg(o.CurrentEmissions),
			FormatKg(o.PotentialReduction),
			fmt.Sprintf("€%.0f", o.ImplementationCost),
			fmt.Sprintf("%.1f", o.ROI),
			o.Effort + "/" + o.Impact,
		})
	}
	var b strings.Builder
	b.WriteString(RenderTable([]string{"Category", "Current", "Reduction", "Cost", "ROI", "Effort/Impact"}, rows))
	for _, o := range ops {
		b.WriteString("\n" + SubtleStyle.Render("• "+o.Category+": "+o.Recommendation))
	}
	return RenderBox("Reduction Opportunities", b.String())
}

// RenderCarbonCost prices emissions by scope.
func RenderCarbonCost(c analytics.CarbonCost) string {
	content := fmt.Sprintf("Carbon price:     €%.2f per tonne\n", c.CarbonPrice) +
		fmt.Sprintf("Scope 1:          €%.2f\n", c.ByScope.Scope1) +
		fmt.Sprintf("Scope 2:          €%.2f\n", c.ByScope.Scope2) +
		fmt.Sprintf("Scope 3:          €%.2f\n", c.ByScope.Scope3) +
		fmt.Sprintf("Total:            %s\n", BoldStyle.Render(fmt.Sprintf("€%.2f", c.TotalCost))) +
		fmt.Sprintf("Monthly average:  €%.2f over %.1f months\n", c.MonthlyAverage, c.Months) +
		fmt.Sprintf("Projected annual: €%.2f", c.ProjectedAnnual)
	return RenderBox("Carbon Cost", content)
}

// RenderFactors lists the emission factor catalogue.
func RenderFactors(factors []model.EmissionFactor) string {
	rows := make([][]string, 0, len(factors))
	for _, f := range factors {
		rows = append(rows, []string{
			f.Category,
			f.Subcategory,
			FormatScope(f.Scope),
			fmt.Sprintf("%.4g", f.Factor),
			f.Unit,
			f.Source,
			fmt.Sprintf("%d", f.Year),
		})
	}
	return RenderTable([]string{"Category", "Subcategory", "Scope", "Factor", "Unit", "Source", "Year"}, rows)
}

// RenderReport summarizes a generated report.
func RenderReport(r *model.Report) string {
	status := SuccessStyle.Render(string(r.Status))
	if r.Status == model.ReportFailed {
		status = ErrorStyle.Render(string(r.Status) + ": " + r.ErrorMessage)
	}
	content := fmt.Sprintf("ID:      %s\n", r.ID) +
		fmt.Sprintf("Company: %s\n", r.CompanyName) +
		fmt.Sprintf("Period:  %s to %s\n", r.PeriodStart.Format("2006-01-02"), r.PeriodEnd.Format("2006-01-02")) +
		fmt.Sprintf("Total:   %s (S1 %s, S2 %s, S3 %s)\n", FormatKg(r.TotalEmissions), FormatKg(r.Scope1), FormatKg(r.Scope2), FormatKg(r.Scope3)) +
		fmt.Sprintf("Status:  %s", status)
	return RenderBox(ReportIcon+" "+r.Title, content)
}
