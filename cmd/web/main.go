package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/config"
	"allocation-dashboard/internal/middleware"
	"allocation-dashboard/internal/observability"
	"allocation-dashboard/internal/server"
	"allocation-dashboard/internal/services"
	"allocation-dashboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 30 * time.Second
	cacheMaxAge    = "public, max-age=300"

	visitorSweepInterval = time.Minute
	visitorIdleTimeout   = 10 * time.Minute
)

var dashboardProps = templates.DashboardProps{
	Title:        "Allocation Dashboard",
	LimitOptions: aggregate.LimitOptions,
	DefaultTop:   "10",
	DefaultDist:  "All",
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard(dashboardProps).Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newHandler assembles the router with the full middleware stack.
func newHandler(cfg *config.Config, logger *slog.Logger, analytics *services.Analytics, metrics *observability.Metrics, limiter *middleware.RateLimiter) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	return server.NewServer(analytics, logger, templateHandlers, server.Options{
		UploadMaxBytes: cfg.Data.UploadMaxBytes,
		Metrics:        metrics,
		Middleware: []func(http.Handler) http.Handler{
			middleware.Recovery(logger),
			middleware.RequestID(),
			middleware.Logger(logger),
			middleware.Metrics(metrics),
			middleware.Tracing(logger),
			middleware.SecurityHeaders(),
			middleware.CORS(cfg.Security),
			middleware.TrustedProxy(cfg.Security),
			middleware.RateLimit(limiter, logger),
		},
	})
}

// loadInitialData reads the configured CSV, if any. A missing or broken file is logged and
// the dashboard starts empty so a dataset can still be uploaded.
func loadInitialData(analytics *services.Analytics, logger *slog.Logger, path string) {
	if path == "" {
		logger.Info("no startup CSV configured, waiting for upload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), csvLoadTimeout)
	defer cancel()

	start := time.Now()
	ds, err := analytics.LoadFromCSV(ctx, path)
	if err != nil {
		logger.Error("failed to load CSV data", "path", path, "error", err)
		return
	}
	if ds == nil {
		logger.Info("startup CSV has no rows", "path", path)
		return
	}
	logger.Info("CSV data loaded successfully",
		"path", path,
		"records", len(ds.Records),
		"duration", time.Since(start),
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	metrics := observability.NewMetrics()
	analytics := services.NewAnalytics(
		services.WithLogger(logger),
		services.WithMetrics(metrics),
		services.WithEngine(cfg.Engine),
	)
	loadInitialData(analytics, logger, cfg.Data.CSVFile)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go rateLimiter.Run(sweepCtx, visitorSweepInterval, visitorIdleTimeout)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, analytics, metrics, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping rate limiter sweep")
		stopSweep()
		return nil
	})
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down analytics service", "stats", analytics.Stats())
		analytics.Reset()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
