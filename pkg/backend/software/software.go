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


// Package software is the local secure key store. Private keys live as
// PKCS#8 blobs, optionally password encrypted, in a storage.Backend and
// are decoded only for the duration of a signing operation.
package software

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Backend is the software key store. It is safe for concurrent use.
type Backend struct {
	storage    storage.Backend
	password   []byte
	persistent bool
	logger     *logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBackend creates a software backend over config.KeyStorage.
//
//	store := memory.New()
//	be, err := software.NewBackend(&software.Config{KeyStorage: store})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer be.Close()
func NewBackend(config *Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Backend{
		storage:    config.KeyStorage,
		password:   append([]byte(nil), config.Password...),
		persistent: config.Persistent,
		logger:     logger,
	}, nil
}

// Type returns the backend type identifier.
func (b *Backend) Type() types.BackendType {
	return types.BackendSoftware
}

// GenerateKey creates a P-256 or Ed25519 key and stores it.
func (b *Backend) GenerateKey(ctx context.Context, alg types.Algorithm) (backend.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		priv any
		err  error
	)
	switch alg.Name {
	case types.AlgorithmECDSA:
		if alg.NamedCurve != types.CurveP256 {
			return nil, fmt.Errorf("%w: curve %q", types.ErrUnsupportedAlgorithm, alg.NamedCurve)
		}
		priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case types.AlgorithmEd25519:
		_, priv, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedAlgorithm, alg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("software: key generation failed: %w", err)
	}

	k, err := encoding.FromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return b.store(k)
}

// ImportKey stores private keys and keeps public-only keys in memory.
func (b *Backend) ImportKey(ctx context.Context, k encoding.Key) (backend.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if !k.IsPrivate() {
		b.mu.RLock()
		defer b.mu.RUnlock()
		if b.closed {
			return nil, backend.ErrClosed
		}
		return newKey(b, uuid.NewString(), k.PublicOnly(), false), nil
	}
	return b.store(k)
}

func (b *Backend) store(k encoding.Key) (backend.Key, error) {
	priv, err := k.PrivateKey()
	if err != nil {
		return nil, err
	}
	der, err := encoding.EncodePKCS8(priv, b.password)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, backend.ErrClosed
	}

	id := uuid.NewString()
	if err := b.storage.Put(storage.KeyPath(id), der, nil); err != nil {
		return nil, fmt.Errorf("software: failed to store key %s: %w", id, err)
	}
	b.logger.Debug("stored key", "id", id, "algorithm", k.Algorithm)
	return newKey(b, id, k.PublicOnly(), true), nil
}

// LoadKey reopens a stored key.
func (b *Backend) LoadKey(ctx context.Context, id string) (backend.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	priv, err := b.loadPrivate(id)
	if err != nil {
		return nil, err
	}
	k, err := encoding.FromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return newKey(b, id, k.PublicOnly(), true), nil
}

// ListKeys returns the ids of all stored keys.
func (b *Backend) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, backend.ErrClosed
	}
	return storage.ListKeys(b.storage)
}

// DeleteKey removes a stored key.
func (b *Backend) DeleteKey(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.ErrClosed
	}
	return b.deleteBlob(id)
}

func (b *Backend) deleteBlob(id string) error {
	err := b.storage.Delete(storage.KeyPath(id))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", backend.ErrKeyNotFound, id)
	}
	return err
}

// loadPrivate decodes the stored PKCS#8 blob for id.
func (b *Backend) loadPrivate(id string) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, backend.ErrClosed
	}

	der, err := b.storage.Get(storage.KeyPath(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", backend.ErrKeyNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return encoding.DecodePKCS8(der, b.password)
}

// Random reads n bytes from crypto/rand.
func (b *Backend) Random(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("software: negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the backend and its key storage.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	clear(b.password)
	return b.storage.Close()
}
