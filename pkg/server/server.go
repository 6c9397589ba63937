package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"recordguard-hq/recordguard/pkg/audit"
	"recordguard-hq/recordguard/pkg/config"
	"recordguard-hq/recordguard/pkg/engine"
	"recordguard-hq/recordguard/pkg/schema"
	"recordguard-hq/recordguard/pkg/server/auth"
	"recordguard-hq/recordguard/pkg/server/middleware"
	"recordguard-hq/recordguard/pkg/server/ratelimit"
	"recordguard-hq/recordguard/pkg/telemetry/health"
	"recordguard-hq/recordguard/pkg/validation"
)

// Validator is the part of the validation engine served over HTTP.
// *engine.Engine implements it.
type Validator interface {
	Validate(ctx context.Context, record validation.Record, vctx *validation.Context) (*validation.Result, error)
	ValidateBatch(ctx context.Context, items []engine.Item) []*validation.Result
	Registry() *schema.Registry
	PerformanceStatistics() map[string]engine.Statistics
	AuditLog() []audit.Entry
	ComplianceAuditLog() []audit.Entry
	LifecycleLog() []audit.Entry
}

// Server is the HTTP API server for record validation.
type Server struct {
	config     *config.ServerConfig
	validator  Validator
	logger     *slog.Logger
	health     *health.Checker
	version    health.VersionInfo
	metrics    http.Handler
	metricPath string
	keys       *auth.KeyStore
	limiter    *ratelimit.Limiter

	mu         sync.RWMutex
	httpServer *http.Server
	isRunning  bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHealth mounts /health, /ready and /version backed by checker.
func WithHealth(checker *health.Checker, info health.VersionInfo) Option {
	return func(s *Server) {
		s.health = checker
		s.version = info
	}
}

// WithMetrics serves handler, typically the prometheus handler, on path.
func WithMetrics(path string, handler http.Handler) Option {
	return func(s *Server) {
		s.metricPath = path
		s.metrics = handler
	}
}

// NewServer creates a new API server. It fails when the configured API
// keys cannot be loaded.
func NewServer(cfg *config.ServerConfig, v Validator, opts ...Option) (*Server, error) {
	s := &Server{
		config:    cfg,
		validator: v,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")

	if cfg.Auth.Enabled {
		keys, err := auth.NewKeyStore(cfg.Auth.Keys)
		if err != nil {
			return nil, fmt.Errorf("invalid API keys: %w", err)
		}
		s.keys = keys
	}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.NewLimiter(cfg.RateLimit)
	}
	return s, nil
}

// Keys returns the API key store, or nil when authentication is disabled.
func (s *Server) Keys() *auth.KeyStore {
	return s.keys
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout. With TLS enabled, ln is wrapped
// in a TLS listener whose certificate reloads until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	tlsConfig, err := s.config.TLS.Build(ctx, s.logger)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.isRunning = true
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server",
			"address", ln.Addr().String(),
			"tls", tlsConfig != nil,
			"auth", s.keys != nil,
			"rate_limit", s.limiter != nil)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.setRunning(false)
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown gracefully shuts down the server. It is safe to call more than
// once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	running := s.isRunning
	s.mu.Unlock()
	if !running || srv == nil {
		return nil
	}

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		shutdownErr = fmt.Errorf("server shutdown error: %w", err)
	}
	s.setRunning(false)
	s.logger.Info("API server stopped")
	return shutdownErr
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.isRunning = running
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed HTTP handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/validate", s.handleValidate)
	mux.HandleFunc("POST /v1/validate/batch", s.handleValidateBatch)
	mux.HandleFunc("GET /v1/schemas", s.handleSchemas)
	mux.HandleFunc("GET /v1/schemas/{type}", s.handleSchema)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/audit/{category}", s.handleAudit)

	if s.health != nil {
		s.health.Mount(mux, s.version)
	}
	if s.metrics != nil && s.metricPath != "" {
		mux.Handle("GET "+s.metricPath, s.metrics)
	}

	var handler http.Handler = mux
	handler = middleware.TimeoutMiddleware(s.config.RequestTimeout)(handler)
	handler = middleware.BodyLimitMiddleware(s.config.MaxBodyBytes)(handler)
	public := s.publicPaths()
	if s.limiter != nil {
		handler = ratelimit.Middleware(s.limiter, public, s.logger)(handler)
	}
	if s.keys != nil {
		handler = auth.Middleware(s.keys, s.config.Auth.Sources, public, s.logger)(handler)
	}
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

// publicPaths are served without authentication or rate limiting.
func (s *Server) publicPaths() []string {
	if len(s.config.Auth.PublicPaths) > 0 {
		return s.config.Auth.PublicPaths
	}
	paths := []string{"/health", "/ready", "/version"}
	if s.metricPath != "" {
		paths = append(paths, s.metricPath)
	}
	return paths
}
