// Package http serves the worker's operations endpoints: liveness, readiness
// and Prometheus metrics. It is not a public API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learnhub/completion-core/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RateLimit is requests per minute per client IP (0 = disabled).
	RateLimit int

	// CheckTimeout bounds each readiness probe.
	CheckTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimit:       600,
		CheckTimeout:    3 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the operations HTTP server. It implements suture.Service.
type Server struct {
	config     Config
	readiness  *handlers.Readiness
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router and the underlying http.Server.
func NewServer(config Config, readiness *handlers.Readiness, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if readiness == nil {
		readiness = handlers.NewReadiness("", config.CheckTimeout)
	}

	s := &Server{
		config:    config,
		readiness: readiness,
		logger:    logger.With("component", "ops_http"),
	}
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Routes returns the chi router with all middleware applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.config.RateLimit, time.Minute))
	}

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Serve runs the server until ctx is cancelled, then shuts it down
// gracefully. A listen failure is returned so the supervisor restarts it.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops http listening", "addr", s.config.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("ops http: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops http shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String names the service in supervisor logs.
func (s *Server) String() string {
	return "ops-http"
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type livenessResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{
		Status:  "ok",
		Uptime:  s.readiness.Uptime().Round(time.Second).String(),
		Version: s.readiness.Version(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := s.readiness.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
		s.logger.Warn("readiness check failed", "message", status.Message)
	}
	writeJSON(w, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE AND HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
