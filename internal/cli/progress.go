package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Veraticus/the-carbon-must-flow/internal/classification"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/schollz/progressbar/v3"
)

// NewProgressBar returns the bar used for long-running commands.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// ProgressClassifier advances a progress bar once per classified expense.
// The bar is created lazily by Reset so one wrapper can serve several files.
type ProgressClassifier struct {
	next   classification.Classifier
	writer io.Writer
	bar    *progressbar.ProgressBar
	done   int
	mu     sync.Mutex
}

// NewProgressClassifier wraps next.
func NewProgressClassifier(next classification.Classifier, w io.Writer) *ProgressClassifier {
	return &ProgressClassifier{next: next, writer: w}
}

// Reset starts a new bar sized for total expenses.
func (p *ProgressClassifier) Reset(total int, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = NewProgressBar(p.writer, total, description)
	p.done = 0
}

// Classify delegates and advances the bar whether or not next succeeded.
func (p *ProgressClassifier) Classify(ctx context.Context, req classification.Request) (model.ClassificationResult, error) {
	result, err := p.next.Classify(ctx, req)

	p.mu.Lock()
	p.done++
	if p.bar != nil {
		if addErr := p.bar.Add(1); addErr != nil {
			slog.Warn("Failed to update progress bar", "error", addErr)
		}
	}
	p.mu.Unlock()

	return result, err
}

// Done returns how many expenses were classified since the last Reset.
func (p *ProgressClassifier) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
