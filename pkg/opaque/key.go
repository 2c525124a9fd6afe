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


// Package opaque adapts a private key handle to crypto.Signer so handles
// can sign certificates, TLS handshakes and anything else in the standard
// library that takes a signer. Key material never leaves the backend.
package opaque

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// KeySigner is the subset of subtle.Subtle an opaque key needs.
type KeySigner interface {
	Sign(ctx context.Context, alg types.Algorithm, key keyhandle.Handle, data []byte) ([]byte, error)
	SignDigest(ctx context.Context, alg types.Algorithm, key keyhandle.Handle, digest []byte) ([]byte, error)
	ExportKey(ctx context.Context, format types.KeyFormat, key keyhandle.Handle) (provider.KeyData, error)
}

// Opaque implements crypto.Signer over a private key handle.
//
// ECDSA keys sign SHA-256 digests and return ASN.1 DER signatures, as
// crypto/x509 and crypto/tls expect. Ed25519 keys sign the full message
// and require opts.HashFunc() to be zero.
type Opaque struct {
	ctx    context.Context
	signer KeySigner
	handle keyhandle.Handle
	pub    crypto.PublicKey
}

var _ crypto.Signer = (*Opaque)(nil)

// NewOpaqueKey returns a signer for the private handle h. The public key
// is read once, as raw bytes, through signer. ctx is used for every
// later Sign call.
func NewOpaqueKey(ctx context.Context, signer KeySigner, h keyhandle.Handle) (*Opaque, error) {
	if signer == nil {
		return nil, ErrSignerRequired
	}
	if h.IsZero() || h.Role() != types.RolePrivate || !h.Usages().Has(types.UsageSign) {
		return nil, fmt.Errorf("%w: %s", ErrPrivateKeyRequired, h)
	}

	data, err := signer.ExportKey(ctx, types.FormatRaw, h)
	if err != nil {
		return nil, err
	}
	b, ok := data.(provider.Bytes)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected export %T", ErrInvalidPublicKey, data)
	}
	k, err := raw.Parse(h.Algorithm().Name, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	pub, err := k.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}

	return &Opaque{ctx: ctx, signer: signer, handle: h, pub: pub}, nil
}

// Public returns the public key of the handle.
func (o *Opaque) Public() crypto.PublicKey {
	return o.pub
}

// Handle returns the wrapped handle.
func (o *Opaque) Handle() keyhandle.Handle {
	return o.handle
}

// Sign implements crypto.Signer. rand is ignored; the backend supplies its
// own randomness.
func (o *Opaque) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	var hash crypto.Hash
	if opts != nil {
		hash = opts.HashFunc()
	}

	switch o.handle.Algorithm().Name {
	case types.AlgorithmECDSA:
		if hash != crypto.SHA256 {
			return nil, fmt.Errorf("%w: ECDSA P-256 signs SHA-256, got %v", ErrInvalidHashFunction, hash)
		}
		sig, err := o.signer.SignDigest(o.ctx, types.ECDSAWithSHA256(), o.handle, digest)
		if err != nil {
			return nil, err
		}
		return encoding.ECDSASignatureToASN1(sig)
	case types.AlgorithmEd25519:
		if hash != 0 {
			return nil, fmt.Errorf("%w: Ed25519 signs the message, got %v", ErrInvalidHashFunction, hash)
		}
		return o.signer.Sign(o.ctx, types.Ed25519(), o.handle, digest)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedAlgorithm, o.handle.Algorithm().Name)
	}
}

// Digest hashes data the way Sign expects its input: SHA-256 for ECDSA
// and the message itself for Ed25519.
func (o *Opaque) Digest(data []byte) ([]byte, error) {
	if o.handle.Algorithm().Name == types.AlgorithmEd25519 {
		return append([]byte(nil), data...), nil
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Equal reports whether x is a signer with the same public key.
func (o *Opaque) Equal(x crypto.PrivateKey) bool {
	signer, ok := x.(crypto.Signer)
	if !ok {
		return false
	}
	return publicKeysEqual(o.pub, signer.Public())
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	switch aPub := a.(type) {
	case *ecdsa.PublicKey:
		bPub, ok := b.(*ecdsa.PublicKey)
		return ok && aPub.Equal(bPub)
	case ed25519.PublicKey:
		bPub, ok := b.(ed25519.PublicKey)
		return ok && bytes.Equal(aPub, bPub)
	default:
		return false
	}
}
