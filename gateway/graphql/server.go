package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/health"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/pkg/tlsutil"
	"github.com/c360/semql/processor"
)

// ServiceName names the server in traces.
const ServiceName = "semql"

// Executor runs queries against a schema.
type Executor interface {
	Query(ctx context.Context, text string, variables map[string]any, operationName string) *processor.Result
	SDL() string
}

// HealthReporter reports the health of the service behind the server.
type HealthReporter interface {
	Health(ctx context.Context) health.Status
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHealth reports h on /health. Unhealthy answers 503.
func WithHealth(h HealthReporter) ServerOption {
	return func(s *Server) {
		s.health = h
	}
}

// Server serves queries over HTTP.
type Server struct {
	config   Config
	executor Executor
	registry *metric.MetricsRegistry
	health   HealthReporter
	logger   *slog.Logger

	httpServer *http.Server
	router     chi.Router

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer creates a server. registry may be nil, in which case /metrics is
// not served.
func NewServer(config Config, executor Executor, registry *metric.MetricsRegistry, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Server", "NewServer", "config validation")
	}

	if executor == nil {
		return nil, errors.WrapFatal(fmt.Errorf("executor is nil"), "Server", "NewServer",
			"executor is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   config,
		executor: executor,
		registry: registry,
		logger:   logger.With("component", "graphql-server"),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Setup configures the routes and the HTTP server.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	if s.config.EnableCORS {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           3600,
		}).Handler)
	}
	r.Use(otelchi.Middleware(ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/schema", s.handleSchema)
	if s.registry != nil {
		r.Handle("/metrics", s.registry.Handler())
	}
	r.Get(s.config.Path, s.handleQuery)
	r.Post(s.config.Path, s.handleQuery)

	if s.config.EnablePlayground {
		r.Handle("/", playground.Handler("semql", s.config.Path))
		s.logger.Info("GraphQL Playground enabled",
			"url", fmt.Sprintf("http://%s/", s.config.BindAddress))
	}

	tlsConfig, err := tlsutil.LoadServerConfig(s.config.TLS)
	if err != nil {
		return errors.Wrap(err, "Server", "Setup", "load tls")
	}

	s.router = r
	s.httpServer = &http.Server{
		TLSConfig:         tlsConfig,
		Addr:              s.config.BindAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.Timeout(),
		WriteTimeout:      s.config.Timeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("Server configured",
		"address", s.config.BindAddress,
		"path", s.config.Path,
		"tls", tlsConfig != nil,
		"timeout", s.config.Timeout())

	return nil
}

// Handler returns the configured router. Setup must run first.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// Start serves until ctx is cancelled, Stop is called or the listener fails.
// ready is closed once the server is about to accept connections.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.httpServer == nil {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrNotStarted, "Server", "Start", "Setup was not called")
	}
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("Server starting", "address", s.config.BindAddress)

		if ready != nil {
			close(ready)
		}

		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Server context cancelled, shutting down")
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("Server stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Server stopping")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server gracefully", "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Server stopped")
	return nil
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := health.NewHealthy(ServiceName, "")
	if s.health != nil {
		status = s.health.Health(r.Context())
	}

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("Failed to write health", "error", err)
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.executor.SDL()))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
			"duration", time.Since(start))
	})
}
