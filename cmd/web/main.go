package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"creator-analytics/internal/cache"
	"creator-analytics/internal/config"
	"creator-analytics/internal/handlers"
	"creator-analytics/internal/metrics"
	"creator-analytics/internal/middleware"
	"creator-analytics/internal/observability"
	"creator-analytics/internal/repository"
	"creator-analytics/internal/server"
	"creator-analytics/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	startupTimeout     = 30 * time.Second
	csvRefreshInterval = time.Minute
)

// app is the wired service: the HTTP handler plus everything that has to
// be started or released around it.
type app struct {
	handler  http.Handler
	limiter  *middleware.RateLimiter
	store    *repository.Opened
	cache    *cache.RedisCache
	registry *prometheus.Registry
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	opened, err := repository.Open(ctx, cfg.Database, cfg.Breaker, logger)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	snapshotMetrics := metrics.New()
	httpMetrics := middleware.NewHTTPMetrics()
	if err := errors.Join(snapshotMetrics.Register(registry), httpMetrics.Register(registry)); err != nil {
		_ = opened.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	opts := services.Options{
		Horizon: cfg.Analytics.ForecastHorizon,
		Timeout: cfg.Analytics.SnapshotTimeout,
		Metrics: snapshotMetrics,
		Logger:  logger,
	}

	var redisCache *cache.RedisCache
	if cfg.Cache.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			_ = opened.Close()
			return nil, fmt.Errorf("connect snapshot cache: %w", err)
		}
		opts.Cache = redisCache
	}

	snapshots := services.NewSnapshotService(opened.Store, opened.Store, opts)

	api := handlers.NewAPIHandlers(snapshots, cfg.Analytics.DefaultShop, logger)
	api.AddHealthCheck("record_store", opened.Breaker)
	api.AddStats("breaker", func() any { return opened.Breaker.State() })
	if opened.CSV != nil {
		api.AddStats("csv", func() any { return opened.CSV.Stats() })
	}
	if redisCache != nil {
		api.AddHealthCheck("cache", redisCache)
	}

	srv := server.NewServer(server.Deps{
		API:         api,
		SSE:         handlers.NewSSEHandlers(snapshots, cfg.Analytics.DefaultShop, logger),
		Gatherer:    registry,
		DefaultShop: cfg.Analytics.DefaultShop,
		Logger:      logger,
	})

	limiter := middleware.NewRateLimiter(cfg.Security)

	// Metrics must stay innermost: the mux sets the route pattern on the
	// request it receives.
	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
		middleware.Metrics(httpMetrics),
	)

	return &app{
		handler:  chain(srv),
		limiter:  limiter,
		store:    opened,
		cache:    redisCache,
		registry: registry,
	}, nil
}

// run starts the background workers; they stop when ctx is done.
func (a *app) run(ctx context.Context, logger *slog.Logger) {
	go a.store.WatchCSV(ctx, csvRefreshInterval, logger)
	go a.limiter.Run(ctx)
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"address", cfg.Address(),
		"sql", cfg.Database.DSN != "",
		"cache", cfg.Cache.Enabled,
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	start := time.Now()
	a, err := buildApp(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	logger.Info("record store ready", "duration", time.Since(start))

	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	a.run(runCtx, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server.ShutdownTimeout)
	gracefulServer.RegisterShutdownHook("store", func(ctx context.Context) error {
		stopWorkers()
		return a.store.Close()
	})
	if a.cache != nil {
		gracefulServer.RegisterShutdownHook("cache", func(ctx context.Context) error {
			return a.cache.Close()
		})
	}

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
