package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/report"
	"github.com/Veraticus/the-carbon-must-flow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNew_Validation(t *testing.T) {
	gen := report.NewGenerator(testutil.SetupTestDB(t), func() string { return "r" })

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty spec", Config{OutputDir: t.TempDir()}},
		{"six fields", Config{Spec: "0 0 9 * * *", OutputDir: t.TempDir()}},
		{"garbage", Config{Spec: "every day", OutputDir: t.TempDir()}},
		{"no output dir", Config{Spec: "0 9 * * 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(gen, tt.cfg, quiet())
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestNext(t *testing.T) {
	gen := report.NewGenerator(testutil.SetupTestDB(t), func() string { return "r" })
	s, err := New(gen, Config{Spec: "0 9 * * 1", OutputDir: t.TempDir()}, quiet())
	require.NoError(t, err)

	// 2024-06-15 is a Saturday.
	assert.Equal(t, time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC), s.Next(fixedNow))
}

func TestPeriod(t *testing.T) {
	p := Period(fixedNow)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, fixedNow, p.End)
}

func TestRunOnce_WritesFiles(t *testing.T) {
	store := testutil.SetupTestDB(t)
	testutil.NewLedgerBuilder("acme", "u1").
		Add("Shell Fuel", "Fuel and Energy", model.Scope1, 45, 120, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).
		Add("EDF Energy", "Energy", model.Scope2, 120, 30, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)).
		Add("Last year", "Energy", model.Scope2, 99, 999, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)).
		Seed(t, store)

	out := filepath.Join(t.TempDir(), "snapshots")
	s, err := New(report.NewGenerator(store, func() string { return "snap-1" }),
		Config{Spec: "@daily", OutputDir: out, UserID: "acme", CompanyName: "Acme Ltd"},
		quiet(), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	assert.Nil(t, s.Last())

	snap, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-1", snap.Report.ID)
	assert.InDelta(t, 150, snap.Report.TotalEmissions, 1e-9)
	assert.ElementsMatch(t, []string{
		filepath.Join(out, "report-20240615-093000.txt"),
		filepath.Join(out, "report-20240615-093000.xbrl"),
	}, snap.Files)

	narrative, err := os.ReadFile(filepath.Join(out, "report-20240615-093000.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(narrative), "Acme Ltd")

	xbrl, err := os.ReadFile(filepath.Join(out, "report-20240615-093000.xbrl"))
	require.NoError(t, err)
	assert.True(t, report.ValidateXBRL(xbrl).Valid)

	assert.Same(t, snap, s.Last())
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, report.Request) (*model.Report, error) {
	return nil, errors.New("database locked")
}

func TestRunOnce_GeneratorError(t *testing.T) {
	out := t.TempDir()
	s, err := New(failingGenerator{}, Config{Spec: "@hourly", OutputDir: out}, quiet())
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database locked")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Nil(t, s.Last())
}

func TestStartStop(t *testing.T) {
	s, err := New(failingGenerator{}, Config{Spec: "0 0 1 1 *", OutputDir: t.TempDir()}, quiet())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
