// Package server exposes the optimizer over HTTP.
//
// Routes:
//
//	GET  /healthz              build information
//	GET  /metrics              Prometheus metrics
//	POST /v1/runs              run the optimizer on a named or inline instance
//	GET  /v1/runs              list tracked runs, newest first
//	GET  /v1/runs/{id}         one run with its history
//	GET  /v1/runs/{id}/tour.svg
//	                           the run's best tour drawn as SVG
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/mallows/pkg/pipeline"
	"github.com/matzehuels/mallows/pkg/tracking"
)

const (
	// DefaultAddr is the listen address of [Server.ListenAndServe].
	DefaultAddr = "127.0.0.1:8080"

	// DefaultMaxRunTime bounds a single POST /v1/runs.
	DefaultMaxRunTime = 10 * time.Minute

	// DefaultMaxBodyBytes bounds request bodies, which may carry inline
	// TSPLIB text.
	DefaultMaxBodyBytes = 16 << 20

	shutdownTimeout = 10 * time.Second
)

// Config configures a [Server].
type Config struct {
	Addr string

	// DataDir resolves problem names in requests and stored runs.
	DataDir string

	MaxRunTime   time.Duration
	MaxBodyBytes int64

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer

	Logger *log.Logger
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxRunTime <= 0 {
		c.MaxRunTime = DefaultMaxRunTime
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Server serves the HTTP API on top of a [pipeline.Runner].
type Server struct {
	cfg    Config
	runner *pipeline.Runner
	store  tracking.Store
	router chi.Router
}

// New returns a server for runner. Runs are listed from the runner's store;
// a runner without one gets an in-memory store.
func New(runner *pipeline.Runner, cfg Config) *Server {
	cfg.setDefaults()
	if runner.Store == nil {
		runner.Store = tracking.NewMemoryStore()
	}
	s := &Server{cfg: cfg, runner: runner, store: runner.Store}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/tour.svg", s.handleTourSVG)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.cfg.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
