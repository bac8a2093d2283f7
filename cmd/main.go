package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/lastofguss/tapd/internal/adapters/http/api"
	"github.com/lastofguss/tapd/internal/adapters/repository"
	service "github.com/lastofguss/tapd/internal/app"
	"github.com/lastofguss/tapd/internal/auth"
	"github.com/lastofguss/tapd/internal/config"
	"github.com/lastofguss/tapd/pkg/logger"
	"github.com/lastofguss/tapd/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input).
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Select the store: postgres when configured, in-memory otherwise.
	var store repository.Store
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error(ctx, "failed to connect to postgres", logger.Error(err))
			return
		}
		defer pg.Close()
		store = pg
		log.Info(ctx, "using postgres store")
	} else {
		store = repository.NewMemStore(repository.WithShardCount(cfg.ShardCount))
		log.Info(ctx, "using in-memory store", logger.Int("shards", cfg.ShardCount))
	}

	tokens := auth.NewProvider(cfg.JWTSecret)

	svc := service.New(
		service.WithStore(store),
		service.WithTokenProvider(tokens),
		service.WithTokenTTL(cfg.TokenTTL()),
		service.WithAdminUsername(cfg.AdminUsername),
		service.WithSuppressedUsername(cfg.SuppressedUsername),
		service.WithRoundTiming(cfg.RoundCooldown(), cfg.RoundDuration()),
		service.WithRefreshQueueSize(cfg.RefreshQueueSize),
		service.WithRefreshWorkerCount(cfg.RefreshWorkerCount),
		service.WithLogger(log.Named("service")),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	apiServer := api.NewServer(svc, svc, tokens)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater periodically refreshes process-level gauges.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
