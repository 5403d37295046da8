package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/classification"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatKg(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00 kg CO2e"},
		{999.994, "999.99 kg CO2e"},
		{1000, "1.00 t CO2e"},
		{12345, "12.35 t CO2e"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatKg(tt.in))
	}
}

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable([]string{"A", "Long header"}, [][]string{
		{"short", "x"},
		{"a much longer cell"},
	})
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)

	last := lines[len(lines)-1]
	prev := lines[len(lines)-2]
	assert.Equal(t, lipgloss.Width(prev), lipgloss.Width(last))
	assert.Contains(t, out, "a much longer cell")
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(analytics.Summary{
		Total:  1500,
		Scope1: 1000,
		Scope2: 500,
		Count:  2,
		ByCategory: []analytics.CategoryTotal{
			{Category: "Fuel and Energy", Scope: model.Scope1, Emissions: 1000, Amount: 45, Count: 1},
			{Category: "Energy", Scope: model.Scope2, Emissions: 500, Amount: 120, Count: 1},
		},
	})

	assert.Contains(t, out, "1.50 t CO2e")
	assert.Contains(t, out, "Fuel and Energy")
	assert.Contains(t, out, "Scope 3")
	assert.Contains(t, out, "66.7%")
}

func TestRenderIngest_TruncatesErrors(t *testing.T) {
	errs := make([]string, 12)
	for i := range errs {
		errs[i] = "Row " + string(rune('A'+i)) + ": bad amount"
	}
	out := RenderIngest("march.csv", &engine.IngestResult{
		Format:    engine.FormatCSV,
		TotalRows: 15,
		ValidRows: 3,
		Errors:    errs,
	}, &model.UploadBatch{ID: "u-1", Status: model.BatchFailed, ErrorMessage: "boom"})

	assert.Contains(t, out, "3 valid of 15")
	assert.Contains(t, out, "failed: boom")
	assert.Contains(t, out, "Row J: bad amount")
	assert.NotContains(t, out, "Row K: bad amount")
	assert.Contains(t, out, "and 2 more")
}

func TestRenderOpportunities_Empty(t *testing.T) {
	assert.Contains(t, RenderOpportunities(nil), "materiality threshold")
}

type stubClassifier struct {
	err error
}

func (s stubClassifier) Classify(context.Context, classification.Request) (model.ClassificationResult, error) {
	return model.ClassificationResult{Category: "Energy", Scope: model.Scope2}, s.err
}

func TestProgressClassifier(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressClassifier(stubClassifier{}, &out)

	_, err := p.Classify(context.Background(), classification.Request{Description: "EDF"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Done())
	assert.Empty(t, out.String())

	p.Reset(2, "Classifying")
	assert.Equal(t, 0, p.Done())
	for range 2 {
		result, err := p.Classify(context.Background(), classification.Request{Description: "EDF"})
		require.NoError(t, err)
		assert.Equal(t, "Energy", result.Category)
	}
	assert.Equal(t, 2, p.Done())
	assert.Contains(t, out.String(), "2/2")
}

func TestProgressClassifier_CountsFailures(t *testing.T) {
	p := NewProgressClassifier(stubClassifier{err: errors.New("down")}, &bytes.Buffer{})
	p.Reset(1, "Classifying")

	_, err := p.Classify(context.Background(), classification.Request{Description: "EDF"})
	require.Error(t, err)
	assert.Equal(t, 1, p.Done())
}
