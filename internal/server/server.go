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


// Package server assembles a custodian REST server from configuration:
// key storage, the software backend, the wallet, bearer token
// authentication, rate limiting, TLS and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jeremyhahn/go-webcrypto/internal/config"
	"github.com/jeremyhahn/go-webcrypto/internal/rest"
	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/ratelimit"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
	"github.com/jeremyhahn/go-webcrypto/pkg/webcrypto"
)

const (
	// ShutdownTimeout bounds how long Shutdown waits for open requests.
	ShutdownTimeout = 30 * time.Second

	collectorInterval = 30 * time.Second
)

// Server runs the custodian over a wallet built from config.
type Server struct {
	config *config.Config
	logger *logging.Logger

	store     storage.Backend
	wallet    *custodian.Wallet
	verifier  *webcrypto.Crypto
	limiter   *ratelimit.Limiter
	rest      *rest.Server
	collector *metrics.ResourceCollector

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	errCh    chan error
	shutdown bool
}

// New creates the server. Nothing listens until Start.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = cfg.Logger()
	}

	s := &Server{
		config: cfg,
		logger: logger.With("component", "server"),
		errCh:  make(chan error, 1),
	}
	if err := s.initialize(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) initialize() error {
	if err := s.initializeWallet(); err != nil {
		return fmt.Errorf("failed to initialize wallet: %w", err)
	}
	authenticator, err := s.initializeAuthenticator()
	if err != nil {
		return fmt.Errorf("failed to initialize authentication: %w", err)
	}
	s.initializeRateLimiter()

	tlsConfig, err := s.config.Custodian.TLS.LoadTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to load TLS configuration: %w", err)
	}

	metricsPath := ""
	if s.config.Metrics.Enabled {
		metricsPath = s.config.Metrics.Path
		metrics.Enable()
	}

	s.rest, err = rest.NewServer(&rest.Config{
		Addr:          s.config.Custodian.Listen,
		Wallet:        s.wallet,
		Storage:       s.store,
		Authenticator: authenticator,
		RateLimiter:   s.limiter,
		MetricsPath:   metricsPath,
		TLSConfig:     tlsConfig,
		Logger:        s.logger,
	})
	return err
}

// initializeWallet opens key storage and the software backend behind the
// wallet. Keys generated through the wallet stay in storage for as long
// as the wallet holds them.
func (s *Server) initializeWallet() error {
	store, err := s.config.Storage.Open()
	if err != nil {
		return err
	}
	be, err := software.NewBackend(&software.Config{
		KeyStorage: store,
		Password:   []byte(s.config.Keystore.Password),
		Persistent: s.config.Keystore.Persistent,
		Logger:     s.logger,
	})
	if err != nil {
		_ = store.Close()
		return err
	}
	s.store = store
	s.wallet, err = custodian.NewWallet(&custodian.Config{Backend: be, Logger: s.logger})
	if err != nil {
		_ = be.Close()
		return err
	}
	s.logger.Info("wallet ready", "storage", s.config.Storage.Backend)
	return nil
}

// initializeAuthenticator imports the configured token verification key
// into a private in-memory Crypto and verifies bearer tokens with it.
func (s *Server) initializeAuthenticator() (rest.Authenticator, error) {
	auth := s.config.Custodian.Auth
	if !auth.Enabled {
		s.logger.Warn("custodian authentication is disabled")
		return rest.NoOpAuthenticator{}, nil
	}

	key, err := auth.LoadPublicKey()
	if err != nil {
		return nil, err
	}
	public, err := raw.Marshal(key)
	if err != nil {
		return nil, err
	}

	be, err := software.NewBackend(&software.Config{KeyStorage: memory.New(), Logger: s.logger})
	if err != nil {
		return nil, err
	}
	s.verifier, err = webcrypto.New(be, &webcrypto.Options{Logger: s.logger})
	if err != nil {
		_ = be.Close()
		return nil, err
	}

	alg := types.Algorithm{Name: key.Algorithm, NamedCurve: key.Curve}
	handle, err := s.verifier.Subtle().ImportKey(context.Background(), types.FormatRaw, provider.Bytes(public), alg, true, types.UsageVerify)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bearer token authentication enabled", "algorithm", key.Algorithm, "issuer", auth.Issuer)
	return rest.NewJWTAuthenticator(&rest.JWTConfig{
		Service:  s.verifier.Subtle(),
		Key:      handle,
		Issuer:   auth.Issuer,
		Audience: auth.Audience,
	})
}

func (s *Server) initializeRateLimiter() {
	rl := s.config.Custodian.RateLimit
	if !rl.Enabled {
		return
	}
	s.limiter = ratelimit.New(&ratelimit.Config{
		Enabled:           true,
		RequestsPerMinute: rl.RequestsPerMinute,
		Burst:             rl.Burst,
	})
	s.logger.Info("rate limiting enabled", "requests_per_min", rl.RequestsPerMinute, "burst", rl.Burst)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return errors.New("server: already shut down")
	}
	if s.listener != nil {
		return errors.New("server: already started")
	}

	l, err := net.Listen("tcp", s.config.Custodian.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Custodian.Listen, err)
	}
	s.listener = l

	if s.config.Metrics.Enabled {
		s.collector = metrics.NewResourceCollector(context.Background(), collectorInterval, func() int {
			return len(s.wallet.Keys())
		})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.collector.Start()
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.rest.Serve(l); err != nil {
			s.logger.Error(err)
			s.errCh <- err
		}
	}()

	s.logger.Info("custodian server started", "addr", l.Addr().String(), "tls", s.config.Custodian.TLS.Enabled)
	return nil
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Custodian.Listen
}

// Run starts the server and blocks until ctx is done or the server fails,
// then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		s.close()
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case serveErr = <-s.errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}

// Shutdown stops accepting requests, waits for open ones and releases the
// wallet. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.Stop()
	}

	var err error
	if s.rest != nil {
		err = s.rest.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout exceeded, forcing stop")
	}

	err = errors.Join(err, s.close())
	s.logger.Info("custodian server stopped")
	return err
}

func (s *Server) close() error {
	var err error
	if s.wallet != nil {
		err = errors.Join(err, s.wallet.Close())
	}
	if s.verifier != nil {
		err = errors.Join(err, s.verifier.Close())
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return err
}
