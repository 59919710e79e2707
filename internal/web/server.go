// Package web serves the control panel API: pattern execution, the
// execution registry, the pattern library, provider catalogs, saved
// outputs, and an SSE event stream.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/patternbench/patternbench/internal/events"
	"github.com/patternbench/patternbench/internal/logging"
)

// Server is the HTTP server for the panel API.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	logger     *logging.Logger
	eventBus   *events.Bus
	api        *APIHandler
	sseHandler *SSEHandler
}

// Config holds the server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	EnableCORS      bool
}

// DefaultConfig returns the default server configuration. There is no
// write timeout: SSE streams and pattern executions outlive any fixed
// limit.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"http://localhost:8080", "http://localhost:5173"},
		EnableCORS:      true,
	}
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithEventBus sets the event bus backing the SSE stream.
func WithEventBus(bus *events.Bus) ServerOption {
	return func(s *Server) {
		s.eventBus = bus
	}
}

// WithAPI sets the API handler mounted under /api/v1.
func WithAPI(api *APIHandler) ServerOption {
	return func(s *Server) {
		s.api = api
	}
}

// New creates a Server with the given configuration.
func New(cfg Config, logger *logging.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		config: cfg,
		logger: logger.WithComponent("web"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}

	return s
}

// setupRouter configures the chi router with middleware and routes.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		})
		r.Use(corsMiddleware.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if s.api != nil {
			s.api.RegisterRoutes(r)
		}
		if s.eventBus != nil {
			s.sseHandler = NewSSEHandler(s.eventBus, s.logger)
			r.Get("/events", s.sseHandler.ServeHTTP)
		}
	})

	return r
}

// loggingMiddleware logs HTTP requests using structured logging.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// handleHealth returns the liveness response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// Start starts the HTTP server in a non-blocking manner.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.httpServer.Addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server, disconnecting SSE clients
// first so open streams do not hold up the drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	if s.sseHandler != nil {
		_ = s.sseHandler.Shutdown(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Router returns the underlying chi router.
func (s *Server) Router() chi.Router {
	return s.router
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
