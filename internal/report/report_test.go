package report

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/Veraticus/the-carbon-must-flow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshot() Snapshot {
	rows := testutil.NewLedgerBuilder("acme", "batch-1").
		Add("Shell diesel", "Fuel and Energy", model.Scope1, 45, 80.61, date(3, 1)).
		Add("EDF electricity", "Energy", model.Scope2, 120, 92.64, date(3, 2)).
		Add("Ryanair DUB-LHR", "Business Travel", model.Scope3, 150, 58.5, date(3, 3)).
		Add("Office Depot paper & toner for the Dublin office", "Purchased Goods", model.Scope3, 40, 20, date(3, 4)).
		Build()

	return NewSnapshot("rep-1", "Q1 2024 GHG Report",
		Entity{Name: "Acme Ltd", Identifier: "ACME-001"},
		service.DateRange{Start: date(1, 1), End: date(3, 31)},
		rows,
		time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC))
}

func TestXBRL_RoundTrip(t *testing.T) {
	snap := testSnapshot()

	data, err := MarshalXBRL(snap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))
	assert.Contains(t, string(data), `<csrd:Scope1GHGEmissions contextRef="entity-context" unitRef="co2e-kg" decimals="2">80.61</csrd:Scope1GHGEmissions>`)

	facts, err := ParseFacts(data)
	require.NoError(t, err)

	assert.InDelta(t, snap.Summary.Scope1, facts.Scope1, 0.005)
	assert.InDelta(t, snap.Summary.Scope2, facts.Scope2, 0.005)
	assert.InDelta(t, snap.Summary.Scope3, facts.Scope3, 0.005)
	assert.InDelta(t, snap.Summary.Total, facts.Total, 0.005)
	assert.Equal(t, "Acme Ltd", facts.EntityName)
	assert.Equal(t, "ACME-001", facts.Identifier)
	assert.Equal(t, "2024-01-01", facts.StartDate)
	assert.Equal(t, "2024-03-31", facts.EndDate)
	assert.Equal(t, "2024-04-02T09:30:00Z", facts.GeneratedAt)
	assert.Equal(t, ToolName, facts.Tool)

	require.Len(t, facts.Categories, 4)
	assert.Equal(t, "Fuel and Energy", facts.Categories[0].Name)
	assert.Equal(t, 1, facts.Categories[0].Scope)
	assert.Equal(t, "Scope 1 emissions from Fuel and Energy", facts.Categories[0].Description)
	assert.Equal(t, "Business Travel", facts.Categories[2].Name)
	assert.InDelta(t, 58.5, facts.Categories[2].Emissions, 1e-9)

	v := ValidateXBRL(data)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)
}

func TestValidateXBRL_MissingMandatoryTag(t *testing.T) {
	root := BuildXBRL(testSnapshot())

	for _, tag := range []string{TagScope1, TagScope2, TagScope3, TagTotal} {
		t.Run(tag, func(t *testing.T) {
			data, err := EncodeXBRL(root.Without(tag))
			require.NoError(t, err)

			v := ValidateXBRL(data)
			assert.False(t, v.Valid)
			require.Len(t, v.Errors, 1)
			assert.Equal(t, "Missing mandatory element: "+tag, v.Errors[0])
			assert.Empty(t, v.Warnings)
		})
	}
}

func TestValidateXBRL_RecommendedTagsAreWarnings(t *testing.T) {
	root := BuildXBRL(testSnapshot()).Without(TagMethodology).Without(TagTool)
	data, err := EncodeXBRL(root)
	require.NoError(t, err)

	v := ValidateXBRL(data)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
	assert.Equal(t, []string{
		"Missing recommended element: " + TagMethodology,
		"Missing recommended element: " + TagTool,
	}, v.Warnings)
}

func TestValidateXBRL_StructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errors []string
	}{
		{
			name:   "malformed",
			doc:    `<xbrl xmlns="a"`,
			errors: []string{"Failed to parse XBRL"},
		},
		{
			name:   "empty",
			doc:    ``,
			errors: []string{"Invalid XBRL root element"},
		},
		{
			name: "wrong root and namespaces",
			doc: `<report xmlns="a">` +
				`<csrd:Scope1GHGEmissions>1</csrd:Scope1GHGEmissions>` +
				`<csrd:Scope2GHGEmissions>1</csrd:Scope2GHGEmissions>` +
				`<csrd:Scope3GHGEmissions>1</csrd:Scope3GHGEmissions>` +
				`<csrd:TotalGHGEmissions>3</csrd:TotalGHGEmissions></report>`,
			errors: []string{
				"Invalid XBRL root element",
				"Missing required namespace: xmlns:xsi",
				"Missing required namespace: xmlns:csrd",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateXBRL([]byte(tt.doc))
			assert.False(t, v.Valid)
			require.Len(t, v.Errors, len(tt.errors))
			for i, want := range tt.errors {
				assert.Contains(t, v.Errors[i], want)
			}
		})
	}
}

func TestNarrative_Pages(t *testing.T) {
	snap := testSnapshot()
	pages := Narrative{}.Pages(snap)
	require.Len(t, pages, 5)

	for i, page := range pages {
		lines := strings.Split(strings.TrimSuffix(page, "\n"), "\n")
		assert.Len(t, lines, DefaultLinesPerPage)
		assert.Equal(t, fmt.Sprintf("Page %d of 5", i+1), lines[len(lines)-1])
	}

	assert.Contains(t, pages[0], "Executive Summary")
	assert.Contains(t, pages[0], "Scope 1 (Direct): 80.6 kg CO2e (32.0%)")
	assert.Contains(t, pages[1], "Emissions Breakdown by Scope")
	assert.Contains(t, pages[2], "Methodology")
	assert.Contains(t, pages[3], "Office Depot paper & toner for...")
	assert.NotContains(t, pages[3], "Dublin office")
	assert.Contains(t, pages[4], "Verification and Compliance")
	assert.Contains(t, pages[4], "Report ID: rep-1")

	text := Narrative{}.Render(snap)
	assert.Equal(t, 4, strings.Count(text, PageBreak))
}

func TestNarrative_TopTenAndOverflow(t *testing.T) {
	b := testutil.NewLedgerBuilder("acme", "batch-1")
	for i := range 15 {
		b.Add(fmt.Sprintf("Flight %02d", i), "Business Travel", model.Scope3, 100, float64(i+1), date(2, i+1))
	}
	snap := NewSnapshot("rep-2", "Travel", Entity{Name: "Acme"},
		service.DateRange{Start: date(1, 1), End: date(3, 31)}, b.Build(), date(4, 1))

	top := TopByEmissions(snap.Transactions, model.Scope3, TopTransactions)
	require.Len(t, top, 10)
	assert.Equal(t, "Flight 14", top[0].Description)
	assert.Equal(t, "Flight 05", top[9].Description)

	text := Narrative{}.Render(snap)
	assert.Contains(t, text, "Flight 05")
	assert.NotContains(t, text, "Flight 04")

	pages := Narrative{LinesPerPage: 12}.Pages(snap)
	last := pages[len(pages)-1]
	assert.True(t, strings.HasSuffix(last, fmt.Sprintf("Page %d of %d\n", len(pages), len(pages))))
	assert.Greater(t, len(pages), 5)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
	assert.Equal(t, strings.Repeat("a", 30), Truncate(strings.Repeat("a", 30)))
	assert.Equal(t, strings.Repeat("é", 30)+"...", Truncate(strings.Repeat("é", 31)))
}

func TestGenerator_Generate(t *testing.T) {
	store := testutil.SetupTestDB(t)
	testutil.NewLedgerBuilder("acme", "batch-1").
		Add("Shell diesel", "Fuel and Energy", model.Scope1, 45, 80.61, date(3, 1)).
		Add("EDF electricity", "Energy", model.Scope2, 120, 92.64, date(3, 2)).
		Add("Old fuel", "Fuel and Energy", model.Scope1, 45, 500, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)).
		Seed(t, store)

	gen := NewGenerator(store, func() string { return "rep-42" })
	gen.now = func() time.Time { return time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC) }

	rep, err := gen.Generate(context.Background(), Request{
		UserID: "acme",
		Entity: Entity{Name: "Acme Ltd", Identifier: "ACME-001"},
	})
	require.NoError(t, err)

	assert.Equal(t, "rep-42", rep.ID)
	assert.Equal(t, "GHG Emissions Report 2024", rep.Title)
	assert.Equal(t, model.ReportCompleted, rep.Status)
	assert.True(t, rep.Valid)
	assert.InDelta(t, 173.25, rep.TotalEmissions, 1e-9)
	assert.Equal(t, date(1, 1), rep.PeriodStart)

	saved, err := store.GetReport(context.Background(), "rep-42")
	require.NoError(t, err)
	assert.Contains(t, saved.Narrative, "Page 1 of")
	assert.Contains(t, saved.XBRL, TagTotal)

	list, err := store.GetUserReports(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
