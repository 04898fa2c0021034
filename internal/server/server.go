// Package server is the thin HTTP layer over the session service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRequestTimeout bounds a request when no timeout is configured.
// A result request can walk the whole provider chain, so it is generous.
const DefaultRequestTimeout = 60 * time.Second

// Option configures the server.
type Option func(*Server)

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithOperatorToken requires a bearer token on the operator endpoints.
func WithOperatorToken(token string) Option {
	return func(s *Server) {
		s.operatorToken = token
	}
}

// WithMetricsHandler exposes h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	requestTimeout time.Duration
	operatorToken  string
	metrics        http.Handler
	httpServer     *http.Server
}

func New(port int, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		Router:         chi.NewRouter(),
		Port:           port,
		logger:         logger,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := s.Router
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(s.requestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "persona-server")
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Mount registers the API routes served by h.
func (s *Server) Mount(h *Handlers) {
	r := s.Router
	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/keyword", h.ConfirmKeyword)
			r.Get("/scenes/{index}", h.LoadScene)
			r.Post("/choices", h.SubmitChoice)
			r.Post("/result", h.GenerateResult)
		})

		r.Group(func(r chi.Router) {
			r.Use(OperatorAuthMiddleware(s.operatorToken))
			r.Get("/stats", h.Stats)
		})
	})

	if s.metrics != nil {
		r.With(OperatorAuthMiddleware(s.operatorToken)).Handle("/metrics", s.metrics)
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
