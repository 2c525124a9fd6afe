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


// Package webcrypto assembles the registry, providers, dispatch and random
// source into a single Crypto value.
//
// Local keys live in a backend.Backend:
//
//	be, _ := software.NewBackend(&software.Config{KeyStorage: memory.New()})
//	c, _ := webcrypto.New(be, nil)
//	defer c.Close()
//	pair, _ := c.Subtle().GenerateKey(ctx, types.ECDSAP256(), false, types.UsageAll)
//
// Keys held by an external custodian are reached through a
// provider.Capability passed to NewWithCapability.
package webcrypto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/crypto/rand"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/subtle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// MaxRandomValues is the largest buffer GetRandomValues fills in one call.
const MaxRandomValues = 65536

// Options configures a Crypto. The zero value is usable.
type Options struct {
	Logger *logging.Logger

	// BlockSize is the request size used against the random source.
	// Zero selects rand.DefaultBlockSize.
	BlockSize int

	// Random overrides the random source. New defaults to the backend;
	// NewWithCapability defaults to the capability when it implements
	// rand.Source and to crypto/rand otherwise.
	Random rand.Source
}

// Crypto owns a key handle registry and the providers bound to it.
type Crypto struct {
	registry *keyhandle.Registry
	subtle   *subtle.Subtle
	random   *rand.Filler
	loader   backend.Loader
	closer   io.Closer
	logger   *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// New returns a Crypto whose keys live in be. Close closes be.
func New(be backend.Backend, opts *Options) (*Crypto, error) {
	if be == nil {
		return nil, ErrBackendRequired
	}
	if opts == nil {
		opts = &Options{}
	}

	registry := keyhandle.NewRegistry()
	ec, err := provider.NewECDSA(registry, be)
	if err != nil {
		return nil, err
	}
	ed, err := provider.NewEd25519(registry, be)
	if err != nil {
		return nil, err
	}

	source := opts.Random
	if source == nil {
		source = be
	}
	c, err := assemble(registry, []provider.Provider{ec, ed}, source, opts)
	if err != nil {
		return nil, err
	}
	c.closer = be
	if loader, ok := be.(backend.Loader); ok {
		c.loader = loader
	}
	c.logger.Debug("webcrypto ready", "backend", be.Type())
	return c, nil
}

// NewWithCapability returns a Crypto that forwards every key operation to
// capability. If capability implements io.Closer, Close closes it.
func NewWithCapability[T any](capability provider.Capability[T], opts *Options) (*Crypto, error) {
	if capability == nil {
		return nil, provider.ErrCapabilityRequired
	}
	if opts == nil {
		opts = &Options{}
	}

	registry := keyhandle.NewRegistry()
	var providers []provider.Provider
	for _, name := range []types.AlgorithmName{types.AlgorithmECDSA, types.AlgorithmEd25519} {
		p, err := provider.NewCallback[T](name, registry, capability)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	source := opts.Random
	if source == nil {
		if s, ok := any(capability).(rand.Source); ok {
			source = s
		} else {
			source = rand.Software{}
		}
	}
	c, err := assemble(registry, providers, source, opts)
	if err != nil {
		return nil, err
	}
	if closer, ok := any(capability).(io.Closer); ok {
		c.closer = closer
	}
	c.logger.Debug("webcrypto ready", "backend", types.BackendCallback)
	return c, nil
}

func assemble(registry *keyhandle.Registry, providers []provider.Provider, source rand.Source, opts *Options) (*Crypto, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	s, err := subtle.New(&subtle.Config{
		Providers: providers,
		Digests:   []provider.DigestProvider{provider.NewSHA1()},
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	filler, err := rand.NewFiller(source, opts.BlockSize)
	if err != nil {
		return nil, err
	}
	return &Crypto{
		registry: registry,
		subtle:   s,
		random:   filler,
		logger:   logger,
	}, nil
}

// Subtle returns the dispatcher for key operations.
func (c *Crypto) Subtle() *subtle.Subtle {
	return c.subtle
}

// Registry returns the handle registry. Callers use it to Dispose handles
// they no longer need.
func (c *Crypto) Registry() *keyhandle.Registry {
	return c.registry
}

// Dispose releases a handle. The backend key is released with its last
// handle.
func (c *Crypto) Dispose(h keyhandle.Handle) error {
	return c.registry.Dispose(h)
}

// GetRandomValues fills buf with random bytes from the configured source
// and returns it.
func (c *Crypto) GetRandomValues(ctx context.Context, buf []byte) ([]byte, error) {
	if len(buf) > MaxRandomValues {
		return nil, fmt.Errorf("%w: %d bytes requested, limit is %d", ErrQuotaExceeded, len(buf), MaxRandomValues)
	}
	start := time.Now()
	err := c.random.Fill(ctx, buf)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpRandom, "", metrics.ErrorType(err))
	}
	metrics.RecordOperation(metrics.OpRandom, "", status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// LoadKey reopens a key persisted by the backend and registers a handle
// pair for it. The private handle is omitted for public-only keys.
func (c *Crypto) LoadKey(ctx context.Context, id string, extractable bool, usages types.KeyUsage) (keyhandle.KeyPair, error) {
	if c.loader == nil {
		return keyhandle.KeyPair{}, ErrNotPersistent
	}
	key, err := c.loader.LoadKey(ctx, id)
	if err != nil {
		return keyhandle.KeyPair{}, err
	}
	var alg types.Algorithm
	switch key.Algorithm() {
	case types.AlgorithmECDSA:
		alg = types.ECDSAP256()
	case types.AlgorithmEd25519:
		alg = types.Ed25519()
	default:
		_ = key.Close()
		return keyhandle.KeyPair{}, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, key.Algorithm())
	}
	pair, err := c.registry.RegisterPair(key, alg, extractable, usages)
	if err != nil {
		_ = key.Close()
		return keyhandle.KeyPair{}, err
	}
	if !key.HasPrivate() {
		if err := c.registry.Dispose(pair.Private); err != nil {
			return keyhandle.KeyPair{}, err
		}
		pair.Private = keyhandle.Handle{}
	}
	c.logger.Debug("key loaded", "id", id, "algorithm", alg.Name)
	return pair, nil
}

// ListKeys returns the ids of persisted keys.
func (c *Crypto) ListKeys(ctx context.Context) ([]string, error) {
	if c.loader == nil {
		return nil, ErrNotPersistent
	}
	return c.loader.ListKeys(ctx)
}

// DeleteKey removes a persisted key. Live handles keep working until
// disposed.
func (c *Crypto) DeleteKey(ctx context.Context, id string) error {
	if c.loader == nil {
		return ErrNotPersistent
	}
	return c.loader.DeleteKey(ctx, id)
}

// KeyID returns the backend id of the key behind h.
func (c *Crypto) KeyID(h keyhandle.Handle) (string, error) {
	v, err := c.registry.Resolve(h)
	if err != nil {
		return "", err
	}
	key, ok := v.(backend.Key)
	if !ok {
		return "", ErrNotPersistent
	}
	return key.ID(), nil
}

// RandomReader returns an io.Reader over the random source.
func (c *Crypto) RandomReader() io.Reader {
	return c.random
}

// Close disposes every handle and then closes the backend or capability.
// It is safe to call more than once.
func (c *Crypto) Close() error {
	c.closeOnce.Do(func() {
		err := c.registry.Close()
		if c.closer != nil {
			err = errors.Join(err, c.closer.Close())
		}
		c.closeErr = err
	})
	return c.closeErr
}
