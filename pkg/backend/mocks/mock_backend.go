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


// Package mocks provides a call-recording backend for tests.
package mocks

import (
	"context"
	"sync"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// MockBackend wraps another backend and records every call reaching it.
// The Func fields, when set, replace the delegated behavior.
type MockBackend struct {
	Inner backend.Backend

	GenerateKeyFunc func(ctx context.Context, alg types.Algorithm) (backend.Key, error)
	ImportKeyFunc   func(ctx context.Context, k encoding.Key) (backend.Key, error)
	RandomFunc      func(ctx context.Context, n int) ([]byte, error)

	mu               sync.Mutex
	GenerateKeyCalls int
	ImportKeyCalls   int
	RandomCalls      []int
	SignCalls        int
	VerifyCalls      int
	ExportCalls      int
	KeyCloseCalls    int
	CloseCalls       int
}

var _ backend.Backend = (*MockBackend)(nil)

// NewMockBackend returns a MockBackend delegating to inner.
func NewMockBackend(inner backend.Backend) *MockBackend {
	return &MockBackend{Inner: inner}
}

func (m *MockBackend) Type() types.BackendType {
	return m.Inner.Type()
}

func (m *MockBackend) GenerateKey(ctx context.Context, alg types.Algorithm) (backend.Key, error) {
	m.mu.Lock()
	m.GenerateKeyCalls++
	m.mu.Unlock()

	if m.GenerateKeyFunc != nil {
		return m.GenerateKeyFunc(ctx, alg)
	}
	k, err := m.Inner.GenerateKey(ctx, alg)
	if err != nil {
		return nil, err
	}
	return &MockKey{Key: k, backend: m}, nil
}

func (m *MockBackend) ImportKey(ctx context.Context, k encoding.Key) (backend.Key, error) {
	m.mu.Lock()
	m.ImportKeyCalls++
	m.mu.Unlock()

	if m.ImportKeyFunc != nil {
		return m.ImportKeyFunc(ctx, k)
	}
	key, err := m.Inner.ImportKey(ctx, k)
	if err != nil {
		return nil, err
	}
	return &MockKey{Key: key, backend: m}, nil
}

func (m *MockBackend) Random(ctx context.Context, n int) ([]byte, error) {
	m.mu.Lock()
	m.RandomCalls = append(m.RandomCalls, n)
	m.mu.Unlock()

	if m.RandomFunc != nil {
		return m.RandomFunc(ctx, n)
	}
	return m.Inner.Random(ctx, n)
}

func (m *MockBackend) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()
	return m.Inner.Close()
}

// Calls returns the number of key operations (sign, verify, export) seen.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SignCalls + m.VerifyCalls + m.ExportCalls
}

func (m *MockBackend) record(counter *int) {
	m.mu.Lock()
	*counter++
	m.mu.Unlock()
}

// MockKey records key operations on its MockBackend.
type MockKey struct {
	backend.Key
	backend *MockBackend
}

func (k *MockKey) Sign(ctx context.Context, message []byte) ([]byte, error) {
	k.backend.record(&k.backend.SignCalls)
	return k.Key.Sign(ctx, message)
}

// SignDigest forwards when the wrapped key supports prehashed signing.
func (k *MockKey) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	k.backend.record(&k.backend.SignCalls)
	signer, ok := k.Key.(backend.DigestSigner)
	if !ok {
		return nil, types.ErrNotImplemented
	}
	return signer.SignDigest(ctx, digest)
}

func (k *MockKey) Verify(ctx context.Context, message, signature []byte) (bool, error) {
	k.backend.record(&k.backend.VerifyCalls)
	return k.Key.Verify(ctx, message, signature)
}

func (k *MockKey) Export(ctx context.Context) (encoding.Key, error) {
	k.backend.record(&k.backend.ExportCalls)
	return k.Key.Export(ctx)
}

func (k *MockKey) Close() error {
	k.backend.record(&k.backend.KeyCloseCalls)
	return k.Key.Close()
}
