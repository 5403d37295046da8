package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/api"
	"github.com/Veraticus/the-carbon-must-flow/internal/certs"
	"github.com/Veraticus/the-carbon-must-flow/internal/config"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/metrics"
	"github.com/Veraticus/the-carbon-must-flow/internal/report"
	"github.com/Veraticus/the-carbon-must-flow/internal/schedule"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const stopTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the upload, ledger, analytics and report API.

Uploads are accepted immediately and processed by a background worker pool;
poll GET /api/uploads/:id for the outcome. When schedule.report_cron is set,
report snapshots are also written to schedule.output_dir on that schedule.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origins (default: any)")
	cmd.Flags().Bool("offline", false, "classify with keyword rules only")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate kept in the config directory")
	cmd.Flags().StringSlice("tls-host", nil, "hosts the certificate covers (default: localhost and loopback)")
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("server.tls_hosts", cmd.Flags().Lookup("tls-host"))
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.cors_origins", cmd.Flags().Lookup("cors-origin"))
	_ = viper.BindPFlag("serve.offline", cmd.Flags().Lookup("offline"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	classifier, err := buildClassifier(viper.GetBool("serve.offline"), logger)
	if err != nil {
		return err
	}
	p, err := buildPipeline(store, classifier, m, logger)
	if err != nil {
		return err
	}
	if n, err := p.calculator.SeedDefaults(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.Info("Seeded emission factor catalogue", "factors", n)
	}

	processor := engine.NewProcessor(ctx, p.engine, engine.ProcessorConfig{
		Workers:   viper.GetInt("engine.workers"),
		QueueSize: viper.GetInt("engine.queue_size"),
	}, logger)
	defer processor.Close()

	an, err := newAnalytics(store)
	if err != nil {
		return err
	}
	reports := report.NewGenerator(store, uuid.NewString)

	if spec := viper.GetString("schedule.report_cron"); spec != "" {
		sched, err := schedule.New(reports, schedule.Config{
			Spec:        spec,
			OutputDir:   viper.GetString("schedule.output_dir"),
			UserID:      viper.GetString("schedule.user_id"),
			CompanyName: viper.GetString("schedule.company_name"),
			Identifier:  viper.GetString("schedule.identifier"),
			Currency:    viper.GetString("schedule.currency"),
		}, schedule.WithLogger(logger))
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				logger.Warn("Report scheduler did not stop cleanly", "error", err)
			}
		}()
	}

	var tlsConfig *tls.Config
	if viper.GetBool("server.tls") {
		certStore := certs.NewStore(filepath.Join(config.Dir(), "certs"), viper.GetStringSlice("server.tls_hosts")...)
		if tlsConfig, err = certStore.TLSConfig(); err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		logger.Info("Serving with self-signed certificate", "cert", certStore.CertFile())
	}

	server := api.New(api.Deps{
		Store:     store,
		Engine:    p.engine,
		Submitter: processor,
		Analytics: an,
		Reports:   reports,
		Metrics:   m,
		Logger:    logger,
	}, api.Config{
		Addr:           viper.GetString("server.addr"),
		AllowedOrigins: viper.GetStringSlice("server.cors_origins"),
		MaxUploadBytes: viper.GetInt64("server.max_upload_bytes"),
		TLS:            tlsConfig,
	})

	return server.Start(ctx)
}
