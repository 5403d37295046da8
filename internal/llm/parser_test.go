package llm

import (
	"testing"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    model.ClassificationResult
		wantErr bool
	}{
		{
			name:    "complete reply",
			content: `{"category":"Energy","subcategory":"Electricity","scope":2,"confidence":0.92,"reasoning":"utility bill"}`,
			want: model.ClassificationResult{
				Category: "Energy", Subcategory: "Electricity", Scope: model.Scope2,
				Confidence: 0.92, Reasoning: "utility bill", Source: model.SourceAI,
			},
		},
		{
			name:    "markdown fence and missing fields",
			content: "```json\n{\"subcategory\": null}\n```",
			want: model.ClassificationResult{
				Category: "Unknown", Scope: model.Scope3, Confidence: 0.5,
				Reasoning: "Classification based on transaction description", Source: model.SourceAI,
			},
		},
		{
			name:    "confidence clamped and string scope",
			content: `Here you go: {"category":"Fuel and Energy","scope":"Scope 1","confidence":4.2}`,
			want: model.ClassificationResult{
				Category: "Fuel and Energy", Scope: model.Scope1, Confidence: 1,
				Reasoning: "Classification based on transaction description", Source: model.SourceAI,
			},
		},
		{
			name:    "out of range scope",
			content: `{"category":"Waste","scope":7,"confidence":-1}`,
			want: model.ClassificationResult{
				Category: "Waste", Scope: model.Scope3, Confidence: 0,
				Reasoning: "Classification based on transaction description", Source: model.SourceAI,
			},
		},
		{
			name:    "not json",
			content: "I cannot classify this.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanMarkdownWrapper(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper(`  {"a":1}  `))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey("Shell  Fuel", 45), cacheKey(" shell fuel ", 45.0))
	assert.NotEqual(t, cacheKey("Shell Fuel", 45), cacheKey("Shell Fuel", 46))
}
