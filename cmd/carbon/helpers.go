package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/classification"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/config"
	"github.com/Veraticus/the-carbon-must-flow/internal/emissions"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/llm"
	"github.com/Veraticus/the-carbon-must-flow/internal/metrics"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/Veraticus/the-carbon-must-flow/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initStorage opens the ledger and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func loadHeuristics() (config.Heuristics, error) {
	h, err := config.LoadHeuristics(viper.GetString("analytics.tables_file"))
	if err != nil {
		return h, err
	}
	if viper.IsSet("analytics.carbon_price") {
		h.Analytics.CarbonPrice = viper.GetFloat64("analytics.carbon_price")
	}
	for key, target := range map[string]*float64{
		"emissions.conversion.fuel":   &h.Conversion.FuelPerLitre,
		"emissions.conversion.energy": &h.Conversion.EnergyPerKWh,
		"emissions.conversion.travel": &h.Conversion.TravelPerKm,
		"emissions.conversion.hotel":  &h.Conversion.HotelPerNight,
	} {
		if viper.IsSet(key) {
			*target = viper.GetFloat64(key)
		}
	}
	return h, nil
}

func llmConfig() llm.Config {
	return llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	}
}

// buildClassifier returns the remote classifier backed by keyword rules, or
// the rules alone when no API key is configured or offline is set.
func buildClassifier(offline bool, logger *slog.Logger) (classification.Classifier, error) {
	rules := classification.NewDefaultRuleClassifier()
	cfg := llmConfig()
	if offline || cfg.APIKey == "" {
		if !offline {
			logger.Info("No llm.api_key configured, classifying with keyword rules only")
		}
		return rules, nil
	}

	remote, err := llm.NewClassifier(cfg, logger)
	if err != nil {
		return nil, common.NewUserError("Could not configure the LLM classifier", err)
	}
	return classification.NewFallbackClassifier(remote, rules, logger), nil
}

type pipeline struct {
	engine     *engine.Engine
	calculator *emissions.Calculator
	heuristics config.Heuristics
}

// buildPipeline wires classifier, calculator and engine over store.
func buildPipeline(store service.Storage, classifier classification.Classifier, m *metrics.Metrics, logger *slog.Logger) (*pipeline, error) {
	h, err := loadHeuristics()
	if err != nil {
		return nil, err
	}

	calc := emissions.NewCalculator(store,
		emissions.WithConversion(h.Conversion),
		emissions.WithLogger(logger))

	batch := classification.NewBatchClassifier(classifier,
		viper.GetInt("classification.group_size"),
		viper.GetDuration("classification.group_delay"))

	eng := engine.New(store, batch, calc,
		engine.WithLogger(logger),
		engine.WithMetrics(m))

	return &pipeline{engine: eng, calculator: calc, heuristics: h}, nil
}

func newAnalytics(store service.Storage) (*analytics.Service, error) {
	h, err := loadHeuristics()
	if err != nil {
		return nil, err
	}
	return analytics.NewService(store, h.Analytics), nil
}

func currentUser() string {
	return viper.GetString("user")
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "period start (2006-01-02)")
	cmd.Flags().String("end", "", "period end, inclusive (2006-01-02)")
}

// periodFromFlags reads --start/--end. The end date covers its whole day.
func periodFromFlags(cmd *cobra.Command) (service.DateRange, error) {
	var period service.DateRange
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")

	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return period, common.NewUserError("--start must be YYYY-MM-DD", err)
		}
		period.Start = t
	}
	if end != "" {
		t, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return period, common.NewUserError("--end must be YYYY-MM-DD", err)
		}
		period.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !period.Start.IsZero() && !period.End.IsZero() && period.End.Before(period.Start) {
		return period, common.NewUserError("--end is before --start", common.ErrInvalidInput)
	}
	return period, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
