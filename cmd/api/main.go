package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpAdapter "github.com/lorrc/field-metrics/internal/adapters/primary/http"
	mw "github.com/lorrc/field-metrics/internal/adapters/primary/http/middleware"
	"github.com/lorrc/field-metrics/internal/adapters/secondary/memory"
	"github.com/lorrc/field-metrics/internal/adapters/secondary/postgres"
	"github.com/lorrc/field-metrics/internal/auth"
	"github.com/lorrc/field-metrics/internal/config"
	"github.com/lorrc/field-metrics/internal/core/batch"
	"github.com/lorrc/field-metrics/internal/core/calendar"
	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/lorrc/field-metrics/internal/core/services"
	"github.com/lorrc/field-metrics/internal/export"
	"github.com/lorrc/field-metrics/internal/infrastructure/logging"
	"github.com/lorrc/field-metrics/internal/infrastructure/metrics"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	// 3. Metrics Registry
	var (
		registry *prometheus.Registry
		m        *metrics.Metrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(registry)
	}

	// 4. Record Store
	ctx := context.Background()
	var (
		fetcher ports.RecordFetcher
		health  httpAdapter.HealthChecker
	)
	switch cfg.Store.Backend {
	case config.StoreMemory:
		logger.Warn("using the in-memory record store; reports will be empty until records are loaded")
		store := memory.NewRecordStore()
		fetcher, health = store, store
	default:
		pool, err := openPool(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to open record store", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		fetcher, health = postgres.NewRecordFetcher(pool, m), pool
	}

	// 5. Report Engine
	workCalendar, err := cfg.WorkCalendar()
	if err != nil {
		logger.Error("invalid working calendar", "error", err)
		os.Exit(1)
	}
	cal, err := calendar.New(workCalendar)
	if err != nil {
		logger.Error("failed to build working calendar", "error", err)
		os.Exit(1)
	}

	calculator := services.NewMetricsCalculator(cal, domain.DefaultSlaTable(), services.DefaultMetricsOptions())
	scheduler := batch.New(batch.Config{
		ChunkSize: cfg.Reports.BatchSize,
		Retries:   cfg.Reports.BatchRetries,
	}, logger, m)

	reportService := services.NewReportService(fetcher, calculator, scheduler, services.ReportConfig{
		DefaultWindowDays: cfg.Reports.DefaultWindowDays,
		TrendMaxDays:      cfg.Reports.TrendMaxDays,
		DefaultLimit:      cfg.Reports.DefaultLimit,
		MaxLimit:          cfg.Reports.MaxLimit,
	}, logger, services.WithMetrics(m))
	exportService := services.NewExportService(reportService, export.NewSerializer(cfg.Reports.ExportPageSize), logger)

	// 6. Security & Rate Limiting
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)

	var (
		generalRateLimiter *mw.RateLimiter
		exportMiddleware   []func(http.Handler) http.Handler
	)
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		exportLimiter := mw.NewRateLimitByKey(cfg.RateLimit.ExportRPS, cfg.RateLimit.ExportBurst)
		exportMiddleware = append(exportMiddleware, exportLimiter.PerUser)
	}

	// 7. Handlers
	errorHandler := httpAdapter.NewErrorHandler(logger)
	reportHandler := httpAdapter.NewReportHandler(reportService, exportService, httpAdapter.ReportHandlerConfig{
		Location:         workCalendar.Loc(),
		Timeout:          cfg.Reports.Timeout,
		ExportMiddleware: exportMiddleware,
	}, errorHandler, logger)
	healthHandler := httpAdapter.NewHealthHandler(health, cfg.App.Version)

	// 8. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(mw.Metrics(m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", mw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// Probe and scrape endpoints stay outside the rate limiter
	healthHandler.RegisterRoutes(r)
	if registry != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if generalRateLimiter != nil {
			r.Use(generalRateLimiter.Middleware)
		}
		r.Use(mw.JWTMiddleware(tokenManager))
		r.Route("/reports", reportHandler.RegisterRoutes)
	})

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// openPool migrates the schema when configured and connects to Postgres.
func openPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.Database.AutoMigrate {
		version, err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath)
		if err != nil {
			return nil, err
		}
		logger.Info("database migrations applied", "version", version)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	// Apply database configuration
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("database connection established")
	return pool, nil
}
