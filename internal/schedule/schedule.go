// Package schedule generates report snapshots on a cron schedule and writes
// them to an output directory.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/config"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/report"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/robfig/cron/v3"
)

// Defaults applied by New.
const (
	DefaultUserID      = "default"
	DefaultCompanyName = "Carbon ledger"
)

// Generator produces and persists a report.
type Generator interface {
	Generate(ctx context.Context, req report.Request) (*model.Report, error)
}

// Config controls the snapshot job. Spec is a standard 5-field cron expression
// (minute hour day-of-month month day-of-week) or a descriptor such as @daily.
type Config struct {
	Spec        string
	OutputDir   string
	UserID      string
	CompanyName string
	Identifier  string
	Currency    string
}

// Snapshot records one completed run.
type Snapshot struct {
	Report *model.Report
	Files  []string
}

// Scheduler runs report snapshots. A run that is still in progress when the
// next one fires causes that next run to be skipped.
type Scheduler struct {
	gen      Generator
	cron     *cron.Cron
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
	mu       sync.Mutex
	last     *Snapshot
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock sets the time source used for snapshot periods.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates cfg and prepares a scheduler. An invalid cron expression or a
// missing output directory yields common.ErrInvalidConfig.
func New(gen Generator, cfg Config, opts ...Option) (*Scheduler, error) {
	cfg.Spec = strings.TrimSpace(cfg.Spec)
	if cfg.Spec == "" {
		return nil, fmt.Errorf("%w: schedule.report_cron is empty", common.ErrInvalidConfig)
	}
	sched, err := specParser.Parse(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule.report_cron %q: %w", common.ErrInvalidConfig, cfg.Spec, err)
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, fmt.Errorf("%w: schedule.output_dir is empty", common.ErrInvalidConfig)
	}
	cfg.OutputDir = config.ExpandPath(cfg.OutputDir)
	if cfg.UserID == "" {
		cfg.UserID = DefaultUserID
	}
	if cfg.CompanyName == "" {
		cfg.CompanyName = DefaultCompanyName
	}

	s := &Scheduler{
		gen:      gen,
		cfg:      cfg,
		schedule: sched,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(
		cron.WithParser(specParser),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
		cron.WithLogger(cronLogger{s.logger}),
	)
	if _, err := s.cron.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return s, nil
}

// Next returns the first fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.logger.Info("report snapshots scheduled",
		"cron", s.cfg.Spec,
		"next", s.Next(s.now()),
		"output_dir", s.cfg.OutputDir)
	s.cron.Start()
}

// Stop halts the schedule and waits for a running snapshot or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Last returns the most recently written snapshot, or nil.
func (s *Scheduler) Last() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) tick() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.logger.Error("scheduled report snapshot failed", "user_id", s.cfg.UserID, "error", err)
	}
}

// Period is the year-to-date window ending at now.
func Period(now time.Time) service.DateRange {
	return service.DateRange{
		Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()),
		End:   now,
	}
}

// RunOnce generates a year-to-date report and writes its narrative and XBRL
// into the output directory. A report that fails XBRL validation is still
// written and returned alongside the error.
func (s *Scheduler) RunOnce(ctx context.Context) (*Snapshot, error) {
	now := s.now()
	rep, err := s.gen.Generate(ctx, report.Request{
		UserID: s.cfg.UserID,
		Title:  fmt.Sprintf("Scheduled snapshot %s", now.Format("2006-01-02")),
		Period: Period(now),
		Entity: report.Entity{
			Name:       s.cfg.CompanyName,
			Identifier: s.cfg.Identifier,
			Currency:   s.cfg.Currency,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stamp := now.Format("20060102-150405")
	snap := &Snapshot{Report: rep}
	for ext, body := range map[string]string{".txt": rep.Narrative, ".xbrl": rep.XBRL} {
		path := filepath.Join(s.cfg.OutputDir, "report-"+stamp+ext)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		snap.Files = append(snap.Files, path)
	}

	s.logger.Info("report snapshot written",
		"report_id", rep.ID,
		"status", rep.Status,
		"total_emissions", rep.TotalEmissions,
		"files", len(snap.Files))

	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()

	if rep.Status == model.ReportFailed {
		return snap, errors.New(rep.ErrorMessage)
	}
	return snap, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
