package classification

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"golang.org/x/sync/errgroup"
)

// Batch defaults.
const (
	DefaultGroupSize  = 10
	DefaultGroupDelay = time.Second
)

// BatchClassifier classifies requests in fixed-size groups. Requests within a group
// run concurrently and groups are separated by GroupDelay.
type BatchClassifier struct {
	classifier Classifier
	GroupSize  int
	GroupDelay time.Duration
}

// NewBatchClassifier creates a BatchClassifier. Non-positive sizes fall back to defaults.
func NewBatchClassifier(classifier Classifier, groupSize int, groupDelay time.Duration) *BatchClassifier {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	if groupDelay < 0 {
		groupDelay = DefaultGroupDelay
	}
	return &BatchClassifier{
		classifier: classifier,
		GroupSize:  groupSize,
		GroupDelay: groupDelay,
	}
}

// ClassifyAll returns one result per request, in input order.
func (b *BatchClassifier) ClassifyAll(ctx context.Context, reqs []Request) ([]model.ClassificationResult, error) {
	results := make([]model.ClassificationResult, len(reqs))

	for start := 0; start < len(reqs); start += b.GroupSize {
		if start > 0 && b.GroupDelay > 0 {
			timer := time.NewTimer(b.GroupDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+b.GroupSize, len(reqs))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				result, err := b.classifier.Classify(gctx, reqs[i])
				if err != nil {
					return fmt.Errorf("failed to classify %q: %w", reqs[i].Description, err)
				}
				results[i] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return results, nil
}
