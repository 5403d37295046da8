// Package api exposes the ingestion pipeline, the ledger, analytics and reports
// over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/engine"
	"github.com/Veraticus/the-carbon-must-flow/internal/metrics"
	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/Veraticus/the-carbon-must-flow/internal/report"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
)

// Server defaults.
const (
	DefaultAddr           = ":8080"
	DefaultMaxUploadBytes = 10 << 20
	DefaultUserID         = "default"
	UserHeader            = "X-User-ID"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ReportGenerator produces and persists reports.
type ReportGenerator interface {
	Generate(ctx context.Context, req report.Request) (*model.Report, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store     service.Storage
	Engine    *engine.Engine
	Submitter engine.Submitter
	Analytics *analytics.Service
	Reports   ReportGenerator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Config holds listener and request limits.
type Config struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
	// TLS, when set, serves HTTPS with these certificates.
	TLS *tls.Config
}

// Server is the HTTP front end.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New builds a server with every route registered.
func New(deps Deps, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Submitter == nil {
		deps.Submitter = deps.Engine
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(echo.WrapMiddleware(s.corsHandler().Handler))
	e.Use(s.observe)
	e.Use(identifyUser)

	s.routes()
	return s
}

func (s *Server) corsHandler() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			UserHeader,
		},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	})
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	api := s.echo.Group("/api")

	api.POST("/uploads", s.createUpload)
	api.GET("/uploads", s.listUploads)
	api.GET("/uploads/:id", s.getUpload)

	api.GET("/transactions", s.listTransactions)
	api.POST("/transactions/:id/verify", s.verifyTransaction)
	api.PUT("/transactions/:id", s.correctTransaction)

	api.GET("/emissions/summary", s.emissionsSummary)
	api.GET("/emissions/trend", s.emissionsTrend)

	api.GET("/analytics/budget", s.budget)
	api.GET("/analytics/benchmark", s.benchmark)
	api.GET("/analytics/opportunities", s.opportunities)
	api.GET("/analytics/cost", s.carbonCost)
	api.GET("/analytics/scopes", s.scopes)

	api.GET("/factors", s.listFactors)

	api.POST("/reports", s.createReport)
	api.GET("/reports", s.listReports)
	api.GET("/reports/:id/download", s.downloadReport)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.echo,
		ReadHeaderTimeout: readHeaderTimeout,
		TLSConfig:         s.cfg.TLS,
	}

	errCh := make(chan error, 1)
	go func() {
		if srv.TLSConfig != nil {
			s.logger.Info("HTTPS server listening", "addr", s.cfg.Addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
