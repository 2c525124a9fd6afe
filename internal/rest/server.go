// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-webcrypto.
//
// go-webcrypto is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.


package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-webcrypto/pkg/correlation"
	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
	"github.com/jeremyhahn/go-webcrypto/pkg/health"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-webcrypto/pkg/ratelimit"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
)

const DefaultAddr = "127.0.0.1:8443"

// Config holds the custodian server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8443)
	Addr string

	// Wallet is served under /v1 (required)
	Wallet *custodian.Wallet

	// Storage, when set, is probed by the readiness check
	Storage storage.Backend

	// Authenticator defaults to NoOpAuthenticator
	Authenticator Authenticator

	// RateLimiter is applied per subject. Nil disables rate limiting.
	// Stop stops it.
	RateLimiter *ratelimit.Limiter

	// MetricsPath serves Prometheus metrics when not empty
	MetricsPath string

	TLSConfig *tls.Config
	Logger    *logging.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the custodian HTTP server.
type Server struct {
	server        *http.Server
	authenticator Authenticator
	limiter       *ratelimit.Limiter
	health        *health.Checker
	logger        *logging.Logger
}

// NewServer creates a server. It is ready to serve once Start or Serve is
// called.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Wallet == nil {
		return nil, custodian.ErrBackendRequired
	}

	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 15 * time.Second
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 60 * time.Second
	}
	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = NoOpAuthenticator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	checker := health.NewChecker()
	checker.Register("random", health.RandomCheck(cfg.Wallet))
	if cfg.Storage != nil {
		checker.Register("storage", health.StorageCheck(cfg.Storage))
	}

	s := &Server{
		authenticator: authenticator,
		limiter:       cfg.RateLimiter,
		health:        checker,
		logger:        logger.With("component", "rest"),
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.setupRouter(cfg),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		TLSConfig:         cfg.TLSConfig,
	}
	return s, nil
}

func (s *Server) setupRouter(cfg *Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(correlation.Middleware)
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", s.liveness)
	r.Get("/health/ready", s.readiness)
	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	api := []func(http.Handler) http.Handler{s.AuthenticationMiddleware()}
	if s.limiter != nil {
		api = append(api, ratelimit.Middleware(s.limiter, SubjectKey))
	}
	r.With(api...).Handle("/v1/*", custodian.NewHandler(cfg.Wallet, s.logger))

	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(l)
}

// Serve serves on l, over TLS when a TLS config is set.
func (s *Server) Serve(l net.Listener) error {
	s.health.MarkReady(true)
	s.logger.Info("custodian server listening",
		"addr", l.Addr().String(),
		"tls", s.server.TLSConfig != nil,
		"auth", s.authenticator.Name())

	var err error
	if s.server.TLSConfig != nil {
		err = s.server.ServeTLS(l, "", "")
	} else {
		err = s.server.Serve(l)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("custodian server: %w", err)
	}
	return nil
}

// Stop marks the server unready and shuts it down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.health.MarkReady(false)
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("custodian server stopped")
	return nil
}
