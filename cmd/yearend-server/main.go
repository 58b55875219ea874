// Command yearend-server serves statement uploads and reports over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"yearend/internal/cli"
	apphttp "yearend/internal/http"
	"yearend/internal/log"
	"yearend/internal/metrics"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout).WithComponent(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	m := metrics.New()
	svc, caches := cli.NewAnalyzer(cfg, logger, m)

	srv := apphttp.NewServer(cfg.Addr(), svc, m, logger, apphttp.Options{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		ChunkSize:        cfg.ChunkSize,
		SampleSize:       cfg.SampleSize,
		UploadsPerMinute: cfg.UploadsPerMinute,
	})

	_, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
	})

	logger.Info("Starting yearend server",
		log.FieldOperation, log.OpStartup,
		"addr", cfg.Addr(),
		"chunk_size", cfg.ChunkSize,
		"cache_size", cfg.CacheSize,
		"cache_ttl", cfg.CacheTTL,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
