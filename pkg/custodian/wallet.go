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


// Package custodian provides key custodians for the callback provider:
// a Wallet that keeps keys behind its own boundary, and a Client that
// reaches a Wallet served over HTTP. Both identify keys by string id and
// implement provider.Capability[string].
package custodian

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Config configures a Wallet.
type Config struct {
	Backend backend.Backend
	Logger  *logging.Logger
}

// Wallet holds keys in a backend and hands out only their ids. Keys live
// until Delete or Close; disposing a handle on the caller side does not
// remove them.
//
// Whether a key's private material may leave the wallet is fixed when the
// key is generated or imported. Export requests cannot change it.
type Wallet struct {
	backend backend.Backend
	logger  *logging.Logger

	mu     sync.RWMutex
	keys   map[string]walletKey
	closed bool
}

type walletKey struct {
	backend.Key
	extractable bool
}

var (
	_ provider.Capability[string]           = (*Wallet)(nil)
	_ provider.ExtractableGenerator[string] = (*Wallet)(nil)
)

// NewWallet returns a Wallet over config.Backend.
func NewWallet(config *Config) (*Wallet, error) {
	if config == nil || config.Backend == nil {
		return nil, ErrBackendRequired
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Wallet{
		backend: config.Backend,
		logger:  logger.With("component", "custodian"),
		keys:    make(map[string]walletKey),
	}, nil
}

func (w *Wallet) key(id string) (walletKey, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return walletKey{}, ErrClosed
	}
	k, ok := w.keys[id]
	if !ok {
		return walletKey{}, unknownKey(id)
	}
	return k, nil
}

func (w *Wallet) isClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

func (w *Wallet) add(k backend.Key, extractable bool) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		_ = k.Close()
		return "", ErrClosed
	}
	w.keys[k.ID()] = walletKey{Key: k, extractable: extractable}
	return k.ID(), nil
}

// Generate creates a non-extractable key in the backend and returns its id.
func (w *Wallet) Generate(ctx context.Context, alg types.Algorithm) (string, error) {
	return w.GenerateExtractable(ctx, alg, false)
}

// GenerateExtractable creates a key whose private material may be
// exported only when extractable is true.
func (w *Wallet) GenerateExtractable(ctx context.Context, alg types.Algorithm, extractable bool) (string, error) {
	if w.isClosed() {
		return "", ErrClosed
	}
	k, err := w.backend.GenerateKey(ctx, alg)
	if err != nil {
		return "", err
	}
	id, err := w.add(k, extractable)
	if err != nil {
		return "", err
	}
	w.logger.Debug("custodian generated key", "id", id, "algorithm", alg, "extractable", extractable)
	return id, nil
}

// ImportKey decodes data and stores it in the backend. extractable is
// recorded with the key and governs later private exports.
func (w *Wallet) ImportKey(ctx context.Context, format types.KeyFormat, data provider.KeyData, alg types.Algorithm, extractable bool, _ types.KeyUsage) (string, error) {
	if w.isClosed() {
		return "", ErrClosed
	}
	k, err := provider.DecodeKeyData(alg.Name, format, data)
	if err != nil {
		return "", err
	}
	key, err := w.backend.ImportKey(ctx, k)
	if err != nil {
		return "", err
	}
	id, err := w.add(key, extractable)
	if err != nil {
		return "", err
	}
	w.logger.Debug("custodian imported key", "id", id, "format", format, "private", k.IsPrivate(), "extractable", extractable)
	return id, nil
}

func (w *Wallet) Sign(ctx context.Context, key provider.CallbackKey[string], message []byte, _ types.Algorithm) ([]byte, error) {
	k, err := w.key(key.Value)
	if err != nil {
		return nil, err
	}
	return k.Sign(ctx, message)
}

func (w *Wallet) Verify(ctx context.Context, key provider.CallbackKey[string], _ types.Algorithm, message, signature []byte) (bool, error) {
	k, err := w.key(key.Value)
	if err != nil {
		return false, err
	}
	return k.Verify(ctx, message, signature)
}

// ExportKey encodes the key. The role in key.Attributes selects public or
// private output; private output is refused with ErrNotExtractable unless
// the key was stored as extractable. The stored flag replaces the caller's.
func (w *Wallet) ExportKey(ctx context.Context, format types.KeyFormat, key provider.CallbackKey[string]) (provider.KeyData, error) {
	k, err := w.key(key.Value)
	if err != nil {
		return nil, err
	}

	attrs := key.Attributes
	var material encoding.Key
	if format == types.FormatJWK && attrs.Role == types.RolePrivate {
		if !k.extractable {
			return nil, types.ErrNotExtractable
		}
		if material, err = k.Export(ctx); err != nil {
			return nil, err
		}
		attrs.Extractable = true
	} else {
		material = k.Public()
	}
	return provider.EncodeKeyData(format, material, attrs)
}

// Random returns n bytes from the backend CSPRNG.
func (w *Wallet) Random(ctx context.Context, n int) ([]byte, error) {
	if w.isClosed() {
		return nil, ErrClosed
	}
	return w.backend.Random(ctx, n)
}

// Delete removes and releases a key.
func (w *Wallet) Delete(_ context.Context, id string) error {
	w.mu.Lock()
	k, ok := w.keys[id]
	delete(w.keys, id)
	w.mu.Unlock()
	if !ok {
		return unknownKey(id)
	}
	return k.Close()
}

// Keys returns the ids of held keys in sorted order.
func (w *Wallet) Keys() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.keys))
	for id := range w.keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close releases every key and closes the backend.
func (w *Wallet) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	keys := w.keys
	w.keys = nil
	w.mu.Unlock()

	var errs []error
	for _, k := range keys {
		errs = append(errs, k.Close())
	}
	errs = append(errs, w.backend.Close())
	return errors.Join(errs...)
}
