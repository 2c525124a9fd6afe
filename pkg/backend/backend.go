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


// Package backend defines the contract between the algorithm providers and
// whatever holds key material. Backends own the secret bytes and perform
// the curve arithmetic; callers only see Key values wrapped in handles.
package backend

import (
	"context"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Backend creates and imports keys.
type Backend interface {
	// Type returns the backend type identifier.
	Type() types.BackendType

	// GenerateKey creates a new key pair. ECDSA requires the P-256 curve.
	GenerateKey(ctx context.Context, alg types.Algorithm) (Key, error)

	// ImportKey takes ownership of k. Public-only keys can verify but not
	// sign.
	ImportKey(ctx context.Context, k encoding.Key) (Key, error)

	// Random returns n bytes from the backend CSPRNG.
	Random(ctx context.Context, n int) ([]byte, error)

	// Close releases the backend. Keys obtained from it stop working.
	Close() error
}

// Key is a backend-owned key. Close releases the backend reference.
type Key interface {
	// ID is unique within the backend.
	ID() string

	Algorithm() types.AlgorithmName

	// HasPrivate reports whether the key can sign.
	HasPrivate() bool

	// Public returns the public part in encoding form.
	Public() encoding.Key

	// Export returns the key including secret material. Returns
	// ErrNoPrivateKey for public-only keys.
	Export(ctx context.Context) (encoding.Key, error)

	// Sign signs message. ECDSA keys hash with SHA-256 and return raw
	// r||s; Ed25519 keys sign the message itself.
	Sign(ctx context.Context, message []byte) ([]byte, error)

	// Verify reports whether signature is valid for message. A signature
	// of the wrong shape verifies false.
	Verify(ctx context.Context, message, signature []byte) (bool, error)

	Close() error
}

// DigestSigner is implemented by ECDSA keys that can sign a prehashed
// SHA-256 digest.
type DigestSigner interface {
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// Loader is implemented by persistent backends that can reopen a key by id.
type Loader interface {
	LoadKey(ctx context.Context, id string) (Key, error)
	ListKeys(ctx context.Context) ([]string, error)
	DeleteKey(ctx context.Context, id string) error
}
