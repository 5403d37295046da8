// Package classification assigns GHG scopes and emission categories to expenses.
package classification

import (
	"context"
	"log/slog"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
)

// Request is the input to a classifier.
type Request struct {
	Description string
	Amount      float64
}

// Classifier assigns a category and scope to an expense.
type Classifier interface {
	Classify(ctx context.Context, req Request) (model.ClassificationResult, error)
}

// Unresolved is the result used when no classifier could produce an answer.
func Unresolved() model.ClassificationResult {
	return model.ClassificationResult{
		Category:   "Unknown",
		Scope:      model.Scope3,
		Confidence: 0.1,
		Reasoning:  "fallback required",
		Source:     model.SourceFallback,
	}
}

// FallbackClassifier tries a primary classifier and falls back to a secondary one.
// Classify never returns an error.
type FallbackClassifier struct {
	primary   Classifier
	secondary Classifier
	logger    *slog.Logger
}

// NewFallbackClassifier composes two classifiers. Either may be nil.
func NewFallbackClassifier(primary, secondary Classifier, logger *slog.Logger) *FallbackClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackClassifier{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Classify returns the first successful result, or Unresolved.
func (f *FallbackClassifier) Classify(ctx context.Context, req Request) (model.ClassificationResult, error) {
	if f.primary != nil {
		result, err := f.primary.Classify(ctx, req)
		if err == nil {
			return result.Normalize(), nil
		}
		f.logger.Warn("primary classifier failed, falling back",
			"description", req.Description,
			"error", err)
	}

	if f.secondary != nil {
		result, err := f.secondary.Classify(ctx, req)
		if err == nil {
			return result.Normalize(), nil
		}
		f.logger.Warn("secondary classifier failed",
			"description", req.Description,
			"error", err)
	}

	return Unresolved(), nil
}
