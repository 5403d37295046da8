package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/Veraticus/the-carbon-must-flow/internal/classification"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// MockClassifier is a deterministic classifier for tests. Results are chosen by
// the first registered keyword found in the description and every call is
// recorded.
type MockClassifier struct {
	err      error
	fallback model.ClassificationResult
	rules    []mockRule
	calls    []MockCall
	mu       sync.Mutex
}

type mockRule struct {
	keyword string
	result  model.ClassificationResult
}

// MockCall records one Classify invocation.
type MockCall struct {
	Error   error
	Request classification.Request
	Result  model.ClassificationResult
}

// NewMockClassifier creates a mock that answers Other/Miscellaneous at 0.5
// unless a keyword matches.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		fallback: model.ClassificationResult{
			Category:    "Other",
			Subcategory: "Miscellaneous",
			Scope:       model.Scope3,
			Confidence:  0.5,
			Reasoning:   "mock default",
			Source:      model.SourceAI,
		},
	}
}

// On registers result for descriptions containing keyword, case-insensitively.
func (m *MockClassifier) On(keyword string, result model.ClassificationResult) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()

	if result.Source == "" {
		result.Source = model.SourceAI
	}
	m.rules = append(m.rules, mockRule{keyword: strings.ToLower(keyword), result: result})
	return m
}

// FailWith makes every subsequent call return err.
func (m *MockClassifier) FailWith(err error) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
	return m
}

// Classify implements classification.Classifier.
func (m *MockClassifier) Classify(ctx context.Context, req classification.Request) (model.ClassificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := MockCall{Request: req}
	defer func() { m.calls = append(m.calls, call) }()

	if err := ctx.Err(); err != nil {
		call.Error = err
		return model.ClassificationResult{}, err
	}
	if m.err != nil {
		call.Error = m.err
		return model.ClassificationResult{}, m.err
	}

	desc := strings.ToLower(req.Description)
	call.Result = m.fallback
	for _, r := range m.rules {
		if strings.Contains(desc, r.keyword) {
			call.Result = r.result
			break
		}
	}
	return call.Result, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockClassifier) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Classify ran.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}
