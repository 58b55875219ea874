// Package http serves the statement pipeline as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yearend/internal/analyzer"
	"yearend/internal/log"
	"yearend/internal/metrics"
)

type Options struct {
	MaxUploadBytes int64
	ChunkSize      int
	SampleSize     int
	// UploadsPerMinute limits POST requests per client IP. Zero disables
	// the limit.
	UploadsPerMinute int
}

type Server struct {
	http.Server
	svc     *analyzer.Service
	metrics *metrics.Metrics
	logger  *log.Logger
	opts    Options
	limiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware and returns a server ready to
// ListenAndServe.
func NewServer(addr string, svc *analyzer.Service, m *metrics.Metrics, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}

	s := &Server{
		svc:     svc,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentHTTP),
		opts:    opts,
		limiter: newRateLimiter(opts.UploadsPerMinute),
	}
	s.limiter.startCleanup(5 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(log.Middleware(s.logger, func(r *http.Request) string { return r.Header.Get(headerRequestID) }))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/statements", func(r chi.Router) {
		r.Use(s.limitUploads)
		r.Post("/", s.handleUpload)
		r.Post("/sample", s.handleSample)
		r.Post("/stream", s.handleStream)
		r.Get("/{id}", s.handleGetDataset)
		r.Get("/{id}/report", s.handleReport)
	})

	return r
}

// Shutdown stops the rate limiter janitor and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.shutdown()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
