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


// Package subtle routes WebCrypto style operations to the provider that
// serves the requested algorithm. The routing table is fixed at
// construction and keyed by operation class and algorithm name, so a digest
// name can never reach a key provider and an unknown algorithm fails before
// any provider runs.
package subtle

import (
	"context"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

type route struct {
	class types.OperationClass
	name  types.AlgorithmName
}

// Config holds the providers served by a Subtle.
type Config struct {
	Providers []provider.Provider
	Digests   []provider.DigestProvider
	Logger    *logging.Logger
}

// Subtle dispatches operations by algorithm name. It is safe for
// concurrent use once constructed.
type Subtle struct {
	keys    map[route]provider.Provider
	digests map[route]provider.DigestProvider
	logger  *logging.Logger
}

// New builds the routing table from config.
func New(config *Config) (*Subtle, error) {
	if config == nil || len(config.Providers)+len(config.Digests) == 0 {
		return nil, ErrNoProviders
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	s := &Subtle{
		keys:    make(map[route]provider.Provider, len(config.Providers)),
		digests: make(map[route]provider.DigestProvider, len(config.Digests)),
		logger:  logger,
	}
	for _, p := range config.Providers {
		r, err := s.routeFor(p.Algorithm(), types.ClassAsymmetric)
		if err != nil {
			return nil, err
		}
		s.keys[r] = p
	}
	for _, p := range config.Digests {
		r, err := s.routeFor(p.Algorithm(), types.ClassDigest)
		if err != nil {
			return nil, err
		}
		s.digests[r] = p
	}
	return s, nil
}

func (s *Subtle) routeFor(name types.AlgorithmName, class types.OperationClass) (route, error) {
	if name.Class() != class {
		return route{}, fmt.Errorf("%w: %q is not %s", ErrClassMismatch, name, class)
	}
	r := route{class: class, name: name}
	_, dupKey := s.keys[r]
	_, dupDigest := s.digests[r]
	if dupKey || dupDigest {
		return route{}, fmt.Errorf("%w: %s", ErrDuplicateRoute, name)
	}
	return r, nil
}

// Algorithms returns the names this Subtle serves.
func (s *Subtle) Algorithms() []types.AlgorithmName {
	var names []types.AlgorithmName
	for _, name := range types.AlgorithmNames() {
		r := route{class: name.Class(), name: name}
		if _, ok := s.keys[r]; ok {
			names = append(names, name)
		} else if _, ok := s.digests[r]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (s *Subtle) keyProvider(name types.AlgorithmName) (provider.Provider, error) {
	p, ok := s.keys[route{class: types.ClassAsymmetric, name: name}]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, name)
	}
	return p, nil
}

// forKey resolves the provider for alg and checks that the handle was
// created for the same algorithm.
func (s *Subtle) forKey(alg types.Algorithm, key keyhandle.Handle) (provider.Provider, error) {
	p, err := s.keyProvider(alg.Name)
	if err != nil {
		return nil, err
	}
	if key.IsZero() {
		return nil, fmt.Errorf("%w: %s", types.ErrKeyNotFound, key)
	}
	if key.Algorithm().Name != alg.Name {
		return nil, fmt.Errorf("%w: %s key used with %s", types.ErrInvalidAlgorithm, key.Algorithm().Name, alg.Name)
	}
	return p, nil
}

// observe records the outcome of one operation.
func (s *Subtle) observe(op string, name types.AlgorithmName, start time.Time, err error, args ...any) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(op, name.String(), metrics.ErrorType(err))
	}
	metrics.RecordOperation(op, name.String(), status, time.Since(start).Seconds())

	args = append(args, "operation", op, "algorithm", name, "duration", time.Since(start))
	if err != nil {
		s.logger.Debug("subtle operation failed", append(args, "error", err)...)
		return
	}
	s.logger.Debug("subtle operation", args...)
}

// GenerateKey creates a key pair for alg.
func (s *Subtle) GenerateKey(ctx context.Context, alg types.Algorithm, extractable bool, usages types.KeyUsage) (pair keyhandle.KeyPair, err error) {
	defer func(start time.Time) { s.observe(metrics.OpGenerate, alg.Name, start, err) }(time.Now())

	p, err := s.keyProvider(alg.Name)
	if err != nil {
		return keyhandle.KeyPair{}, err
	}
	return p.Generate(ctx, alg, extractable, usages)
}

// Sign signs data with a private key handle.
func (s *Subtle) Sign(ctx context.Context, alg types.Algorithm, key keyhandle.Handle, data []byte) (signature []byte, err error) {
	defer func(start time.Time) { s.observe(metrics.OpSign, alg.Name, start, err, "bytes", len(data)) }(time.Now())

	p, err := s.forKey(alg, key)
	if err != nil {
		return nil, err
	}
	return p.Sign(ctx, key, data, alg)
}

// SignDigest signs a digest computed by the caller. Only providers
// implementing provider.DigestSigner support it.
func (s *Subtle) SignDigest(ctx context.Context, alg types.Algorithm, key keyhandle.Handle, digest []byte) (signature []byte, err error) {
	defer func(start time.Time) { s.observe(metrics.OpSign, alg.Name, start, err, "digest", true) }(time.Now())

	p, err := s.forKey(alg, key)
	if err != nil {
		return nil, err
	}
	signer, ok := p.(provider.DigestSigner)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot sign digests", types.ErrNotImplemented, alg.Name)
	}
	return signer.SignDigest(ctx, key, digest)
}

// Verify reports whether signature is valid for data. A mismatch is
// false with a nil error.
func (s *Subtle) Verify(ctx context.Context, alg types.Algorithm, key keyhandle.Handle, signature, data []byte) (valid bool, err error) {
	defer func(start time.Time) {
		s.observe(metrics.OpVerify, alg.Name, start, err, "bytes", len(data), "valid", valid)
	}(time.Now())

	p, err := s.forKey(alg, key)
	if err != nil {
		return false, err
	}
	return p.Verify(ctx, key, alg, data, signature)
}

// ImportKey imports key data in format and returns a new handle.
func (s *Subtle) ImportKey(ctx context.Context, format types.KeyFormat, data provider.KeyData, alg types.Algorithm, extractable bool, usages types.KeyUsage) (key keyhandle.Handle, err error) {
	defer func(start time.Time) { s.observe(metrics.OpImport, alg.Name, start, err, "format", format) }(time.Now())

	p, err := s.keyProvider(alg.Name)
	if err != nil {
		return keyhandle.Handle{}, err
	}
	return p.ImportKey(ctx, format, data, alg, extractable, usages)
}

// ExportKey exports key in format. The provider is chosen by the
// algorithm recorded on the handle.
func (s *Subtle) ExportKey(ctx context.Context, format types.KeyFormat, key keyhandle.Handle) (data provider.KeyData, err error) {
	name := key.Algorithm().Name
	defer func(start time.Time) { s.observe(metrics.OpExport, name, start, err, "format", format) }(time.Now())

	if key.IsZero() {
		return nil, fmt.Errorf("%w: %s", types.ErrKeyNotFound, key)
	}
	p, err := s.keyProvider(name)
	if err != nil {
		return nil, err
	}
	return p.ExportKey(ctx, format, key)
}

// Digest hashes data with alg.
func (s *Subtle) Digest(ctx context.Context, alg types.Algorithm, data []byte) (digest []byte, err error) {
	defer func(start time.Time) { s.observe(metrics.OpDigest, alg.Name, start, err) }(time.Now())

	p, ok := s.digests[route{class: types.ClassDigest, name: alg.Name}]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, alg.Name)
	}
	return p.Digest(ctx, alg, data)
}
