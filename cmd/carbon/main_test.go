package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/emissions"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{name: "empty"},
		{
			name:  "end covers whole day",
			args:  []string{"--start", "2024-01-01", "--end", "2024-03-31"},
			start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC),
		},
		{name: "bad start", args: []string{"--start", "01/01/2024"}, wantErr: true},
		{name: "reversed", args: []string{"--start", "2024-02-01", "--end", "2024-01-01"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "x"}
			addPeriodFlags(cmd)
			require.NoError(t, cmd.ParseFlags(tt.args))

			p, err := periodFromFlags(cmd)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, p.Start)
			assert.Equal(t, tt.end, p.End)
		})
	}
}

func TestLoadHeuristics_ViperOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("analytics.carbon_price", 120.0)
	viper.Set("emissions.conversion.fuel", 1.9)

	h, err := loadHeuristics()
	require.NoError(t, err)
	assert.InDelta(t, 120, h.Analytics.CarbonPrice, 1e-9)
	assert.InDelta(t, 1.9, h.Conversion.FuelPerLitre, 1e-9)
	assert.InDelta(t, emissions.DefaultConversion().HotelPerNight, h.Conversion.HotelPerNight, 1e-9)
}

func TestImportThenAnalyze(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	viper.Set("database.path", filepath.Join(dir, "ledger.db"))
	viper.Set("user", "acme")
	viper.Set("import.offline", true)
	viper.Set("classification.group_size", 10)

	csvPath := filepath.Join(dir, "march.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Merchant,Amount,Date\n"+
		"Shell Fuel,45.00,01/03/2024\n"+
		"EDF Energy,€120.00,2024-03-05\n"+
		"Ryanair,150,05-03-2024\n"), 0o600))

	var out bytes.Buffer
	imp := importCmd()
	imp.SetArgs([]string{csvPath})
	imp.SetOut(&out)
	imp.SetErr(io.Discard)
	require.NoError(t, imp.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Imported 1 file(s)")

	out.Reset()
	an := analyzeCmd()
	an.SetArgs([]string{"summary", "--json", "--start", "2024-03-01", "--end", "2024-03-31"})
	an.SetOut(&out)
	require.NoError(t, an.ExecuteContext(context.Background()))

	var summary analytics.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 3, summary.Count)
	assert.Greater(t, summary.Scope1, 0.0)
	assert.Greater(t, summary.Scope2, 0.0)
	assert.Greater(t, summary.Scope3, 0.0)
}

func TestImport_StructuralErrorFails(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	viper.Set("database.path", filepath.Join(dir, "ledger.db"))
	viper.Set("user", "acme")
	viper.Set("import.offline", true)

	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Merchant,Amount,Notes\nShell,45,x\n"), 0o600))

	var out bytes.Buffer
	imp := importCmd()
	imp.SetArgs([]string{path})
	imp.SetOut(&out)
	imp.SetErr(io.Discard)
	imp.SilenceErrors = true
	imp.SilenceUsage = true

	err := imp.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, out.String(), "file must contain a date column")
}
