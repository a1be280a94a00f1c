package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"irondiscipline/warden/pkg/config"
	"irondiscipline/warden/pkg/containment"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/telemetry/health"
	"irondiscipline/warden/pkg/telemetry/metrics"
	"irondiscipline/warden/pkg/telemetry/tracing"
)

// Deps are the collaborators served by the admin server. Controller,
// Dispatcher, Sessions and Health are required.
type Deps struct {
	Controller *containment.Controller
	Dispatcher *containment.Dispatcher
	Sessions   *session.Registry
	Health     *health.Checker
	Metrics    *metrics.Collector
	Logger     *slog.Logger

	// MetricsPath serves the Prometheus endpoint when Metrics is set.
	MetricsPath string

	Version   string
	Commit    string
	BuildTime string
}

// Server is the admin HTTP server.
type Server struct {
	config     config.AdminConfig
	deps       Deps
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server

	mu        sync.Mutex
	isRunning bool
}

// New creates an admin server. Routes are built immediately, so Handler is
// usable without starting the listener.
func New(cfg config.AdminConfig, deps Deps) (*Server, error) {
	switch {
	case deps.Controller == nil:
		return nil, errors.New("server: controller is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("server: dispatcher is required")
	case deps.Sessions == nil:
		return nil, errors.New("server: session registry is required")
	case deps.Health == nil:
		return nil, errors.New("server: health checker is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "server"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until ctx is cancelled
// or the listener fails. Cancellation shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.setStopped()
		return err
	}
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	running := s.isRunning
	s.mu.Unlock()
	if !running || srv == nil {
		return nil
	}

	s.logger.Info("shutting down admin server", "timeout", s.config.ShutdownTimeout.String())
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	err := srv.Shutdown(ctx)
	s.setStopped()
	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("admin server stopped")
	return nil
}

// IsRunning returns true if the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger))
	r.Use(requestID)
	r.Use(tracing.HTTPMiddleware)
	r.Use(accessLog(s.logger))
	r.Use(instrument(s.deps.Metrics))

	r.Get("/healthz", s.deps.Health.LivenessHandler())
	r.Get("/readyz", s.deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.deps.MetricsPath, s.deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(contentTypeJSON)

		r.Get("/confinements", s.handleList)
		r.Post("/confinements", s.handleConfine)
		r.Get("/confinements/{id}", s.handleShow)
		r.Delete("/confinements/{id}", s.handleRelease)

		r.Get("/sessions", s.handleSessions)
		r.Post("/events", s.handleEvent)
	})

	return r
}
