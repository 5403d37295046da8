package review

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

// Config holds what a review session needs.
type Config struct {
	Reviewer Reviewer
	Input    io.Reader
	Output   io.Writer
	Rows     []model.LedgerTransaction
	// AltScreen takes over the whole terminal. Off for piped output.
	AltScreen bool
}

// Run shows the review screen until every row is handled, the user quits or
// ctx ends, then prints a summary line to cfg.Output.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	if cfg.Reviewer == nil {
		return Summary{}, errors.New("reviewer is required")
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(NewModel(ctx, cfg.Reviewer, cfg.Rows), opts...).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return Summary{}, fmt.Errorf("review screen failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return Summary{}, fmt.Errorf("unexpected review model %T", final)
	}
	summary := m.Summary()
	if cfg.Output != nil {
		_, _ = fmt.Fprintln(cfg.Output, formatSummary(summary))
	}
	return summary, nil
}
