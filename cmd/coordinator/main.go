package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/zonectl/internal/coordinator"
)

type config struct {
	addr           string
	logLevel       string
	healthInterval time.Duration
	probeShards    bool
}

func loadConfig() (config, error) {
	cfg := config{
		addr:     getenv("COORDINATOR_ADDR", ":8080"),
		logLevel: getenv("COORDINATOR_LOG_LEVEL", "info"),
	}
	probe, err := strconv.ParseBool(getenv("COORDINATOR_PROBE_SHARDS", "true"))
	if err != nil {
		return cfg, fmt.Errorf("COORDINATOR_PROBE_SHARDS: %w", err)
	}
	cfg.probeShards = probe
	interval, err := time.ParseDuration(getenv("COORDINATOR_HEALTH_INTERVAL", "10s"))
	if err != nil {
		return cfg, fmt.Errorf("COORDINATOR_HEALTH_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return cfg, fmt.Errorf("COORDINATOR_HEALTH_INTERVAL must be positive, got %s", interval)
	}
	cfg.healthInterval = interval
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("COORDINATOR_LOG_LEVEL: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("coordinator failed", zap.Error(err))
	}
}

func run(cfg config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []coordinator.CatalogOption{coordinator.WithLogger(logger.Named("catalog"))}
	var monitor *coordinator.HealthMonitor
	if cfg.probeShards {
		monitor = coordinator.NewHealthMonitor(cfg.healthInterval, logger.Named("health"))
	} else {
		opts = append(opts, coordinator.WithProber(nil))
	}
	catalog := coordinator.NewCatalog(opts...)
	srv := newServer(catalog, monitor, logger)

	httpSrv := &http.Server{
		Addr:              cfg.addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("coordinator listening", zap.String("addr", cfg.addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if monitor != nil {
		g.Go(func() error { return monitor.Start(ctx, catalog.Shards) })
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		logger.Info("coordinator stopped")
		return err
	})
	return g.Wait()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
