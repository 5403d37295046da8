package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// Substituted when a reply omits a field.
const (
	defaultCategory   = "Unknown"
	defaultConfidence = 0.5
	defaultReasoning  = "Classification based on transaction description"
)

type classificationPayload struct {
	Subcategory *string         `json:"subcategory"`
	Confidence  *float64        `json:"confidence"`
	Category    string          `json:"category"`
	Reasoning   string          `json:"reasoning"`
	Scope       json.RawMessage `json:"scope"`
}

// parseClassification decodes a model reply, substituting defaults for missing fields.
// Only a reply that is not a JSON object is an error.
func parseClassification(content string) (model.ClassificationResult, error) {
	content = extractJSONObject(cleanMarkdownWrapper(content))

	var payload classificationPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return model.ClassificationResult{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	result := model.ClassificationResult{
		Category:   strings.TrimSpace(payload.Category),
		Reasoning:  strings.TrimSpace(payload.Reasoning),
		Scope:      parseScope(payload.Scope),
		Confidence: defaultConfidence,
		Source:     model.SourceAI,
	}
	if result.Category == "" {
		result.Category = defaultCategory
	}
	if result.Reasoning == "" {
		result.Reasoning = defaultReasoning
	}
	if payload.Subcategory != nil && !strings.EqualFold(*payload.Subcategory, "null") {
		result.Subcategory = strings.TrimSpace(*payload.Subcategory)
	}
	if payload.Confidence != nil && *payload.Confidence != 0 {
		result.Confidence = *payload.Confidence
	}

	return result.Normalize(), nil
}

// parseScope accepts 2, "2" or "Scope 2". Anything else is scope 3.
func parseScope(raw json.RawMessage) model.Scope {
	if len(raw) == 0 {
		return model.Scope3
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return model.ParseScope(int(n))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "scope"))
		if v, err := strconv.Atoi(s); err == nil {
			return model.ParseScope(v)
		}
	}
	return model.Scope3
}

// cleanMarkdownWrapper strips a ```json fence around a reply.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// extractJSONObject trims prose before the first '{' and after the last '}'.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return content
	}
	return content[start : end+1]
}
