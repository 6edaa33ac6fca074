package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davidbz/sidecar/internal/config"
	"github.com/davidbz/sidecar/internal/http/middleware"
	"github.com/davidbz/sidecar/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      *config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.ServerConfig,
	handler *Handler,
	middlewares middleware.Middleware,
) *Server {
	s := &Server{
		config:      cfg,
		handler:     handler,
		middlewares: middlewares,
	}
	// WriteTimeout stays zero by default: answers stream for as long as the
	// model keeps producing.
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
	}
	return s
}

// Routes returns the router with the middleware chain applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	if s.middlewares != nil {
		r.Use(s.middlewares)
	}

	r.Get("/health", s.handler.HandleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/answer", s.handler.HandleAnswer)
		r.Post("/fim", s.handler.HandleFIM)
		r.Post("/tokens", s.handler.HandleTokens)
		r.Get("/models/{model}", s.handler.HandleModel)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops. A server shut down
// before Start returns nil at once.
func (s *Server) Start() error {
	observability.FromContext(context.Background()).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
