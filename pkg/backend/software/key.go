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


package software

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Key is a software backend key. Stored keys keep only the public part in
// memory; the private part is decoded from storage on each signature.
type Key struct {
	backend *Backend
	id      string
	public  encoding.Key
	stored  bool

	mu     sync.RWMutex
	closed bool
}

var (
	_ backend.Key          = (*Key)(nil)
	_ backend.DigestSigner = (*Key)(nil)
)

func newKey(b *Backend, id string, public encoding.Key, stored bool) *Key {
	return &Key{backend: b, id: id, public: public, stored: stored}
}

func (k *Key) ID() string {
	return k.id
}

func (k *Key) Algorithm() types.AlgorithmName {
	return k.public.Algorithm
}

func (k *Key) HasPrivate() bool {
	return k.stored
}

func (k *Key) Public() encoding.Key {
	return k.public.PublicOnly()
}

func (k *Key) Export(ctx context.Context) (encoding.Key, error) {
	priv, err := k.private(ctx)
	if err != nil {
		return encoding.Key{}, err
	}
	return encoding.FromPrivateKey(priv)
}

func (k *Key) Sign(ctx context.Context, message []byte) ([]byte, error) {
	switch k.public.Algorithm {
	case types.AlgorithmECDSA:
		digest := sha256.Sum256(message)
		return k.SignDigest(ctx, digest[:])
	case types.AlgorithmEd25519:
		priv, err := k.private(ctx)
		if err != nil {
			return nil, err
		}
		edKey, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: stored key is %T", types.ErrInvalidAlgorithm, priv)
		}
		return ed25519.Sign(edKey, message), nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedAlgorithm, k.public.Algorithm)
	}
}

// SignDigest signs a SHA-256 digest with an ECDSA key and returns raw r||s.
func (k *Key) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if k.public.Algorithm != types.AlgorithmECDSA {
		return nil, fmt.Errorf("%w: prehashed signing requires ECDSA", types.ErrInvalidAlgorithm)
	}
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", backend.ErrInvalidDigest, sha256.Size, len(digest))
	}
	priv, err := k.private(ctx)
	if err != nil {
		return nil, err
	}
	ecKey, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: stored key is %T", types.ErrInvalidAlgorithm, priv)
	}
	der, err := ecdsa.SignASN1(rand.Reader, ecKey, digest)
	if err != nil {
		return nil, fmt.Errorf("software: sign failed: %w", err)
	}
	return encoding.ECDSASignatureToRaw(der, encoding.P256SignatureSize/2)
}

func (k *Key) Verify(ctx context.Context, message, signature []byte) (bool, error) {
	if err := k.usable(ctx); err != nil {
		return false, err
	}
	pub, err := k.public.PublicKey()
	if err != nil {
		return false, err
	}

	switch pub := pub.(type) {
	case *ecdsa.PublicKey:
		if len(signature) != encoding.P256SignatureSize {
			return false, nil
		}
		digest := sha256.Sum256(message)
		r := new(big.Int).SetBytes(signature[:32])
		s := new(big.Int).SetBytes(signature[32:])
		return ecdsa.Verify(pub, digest[:], r, s), nil
	case ed25519.PublicKey:
		if len(signature) != ed25519.SignatureSize {
			return false, nil
		}
		return ed25519.Verify(pub, message, signature), nil
	default:
		return false, fmt.Errorf("%w: %T", types.ErrUnsupportedAlgorithm, pub)
	}
}

// Close releases the key. Unless the backend is persistent the stored
// private key is deleted.
func (k *Key) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true

	if !k.stored || k.backend.persistent {
		return nil
	}

	k.backend.mu.RLock()
	defer k.backend.mu.RUnlock()
	if k.backend.closed {
		return nil
	}
	if err := k.backend.deleteBlob(k.id); err != nil && !errors.Is(err, backend.ErrKeyNotFound) {
		return err
	}
	return nil
}

func (k *Key) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return fmt.Errorf("%w: %s", backend.ErrKeyClosed, k.id)
	}
	return nil
}

func (k *Key) private(ctx context.Context) (any, error) {
	if err := k.usable(ctx); err != nil {
		return nil, err
	}
	if !k.stored {
		return nil, backend.ErrNoPrivateKey
	}
	return k.backend.loadPrivate(k.id)
}
