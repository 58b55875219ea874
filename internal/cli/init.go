// Package cli holds the start-up steps shared by cmd/yearend and
// cmd/yearend-server.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"yearend/internal/analyzer"
	"yearend/internal/cache"
	"yearend/internal/config"
	"yearend/internal/log"
	"yearend/internal/metrics"
)

// SetupLogger builds the process logger at level, writing text to out, and
// installs it as the slog default. An unknown level falls back to info and
// is reported once the logger exists.
func SetupLogger(level string, out io.Writer) *log.Logger {
	lvl, err := log.ParseLevel(level)
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	if out != nil {
		cfg.Output = out
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads .env (or the given files) for local runs. A missing
// file is not an error.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// LoadAndValidateConfig loads the configuration and exits the process when
// it is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// NewAnalyzer builds the analysis service from cfg and starts the janitor
// that expires its memo caches. Stop the returned manager on shutdown.
func NewAnalyzer(cfg *config.Config, logger *log.Logger, m *metrics.Metrics) (*analyzer.Service, *cache.Manager) {
	svc := analyzer.New(analyzer.Options{
		ChunkSize:  cfg.ChunkSize,
		SampleSize: cfg.SampleSize,
		CacheSize:  cfg.CacheSize,
		CacheTTL:   cfg.CacheTTL,
	}, logger, m)

	mgr := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	for _, c := range svc.Caches() {
		mgr.Register(c)
	}
	mgr.StartCleanup(cfg.CacheCleanupInterval)
	return svc, mgr
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. When
// that happens cleanup runs with a context bounded by timeout, and the
// returned channel is closed once it has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
