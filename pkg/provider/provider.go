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


// Package provider implements one key provider per algorithm over a
// keyhandle.Registry. Local providers delegate key material to a
// backend.Backend; Callback forwards every operation to an injected
// Capability. All format and algorithm checks run before the backend or
// capability is reached.
package provider

import (
	"context"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Provider is the contract shared by every asymmetric algorithm.
type Provider interface {
	// Algorithm returns the algorithm this provider serves.
	Algorithm() types.AlgorithmName

	Generate(ctx context.Context, alg types.Algorithm, extractable bool, usages types.KeyUsage) (keyhandle.KeyPair, error)

	Sign(ctx context.Context, key keyhandle.Handle, message []byte, alg types.Algorithm) ([]byte, error)

	// Verify returns false, not an error, for a signature that does not match.
	Verify(ctx context.Context, key keyhandle.Handle, alg types.Algorithm, message, signature []byte) (bool, error)

	ImportKey(ctx context.Context, format types.KeyFormat, data KeyData, alg types.Algorithm, extractable bool, usages types.KeyUsage) (keyhandle.Handle, error)

	ExportKey(ctx context.Context, format types.KeyFormat, key keyhandle.Handle) (KeyData, error)
}

// DigestProvider computes unkeyed digests.
type DigestProvider interface {
	Algorithm() types.AlgorithmName
	Digest(ctx context.Context, alg types.Algorithm, data []byte) ([]byte, error)
}

// KeyData is the input and output of import and export: either Bytes for
// the binary formats or JSONWebKey for jwk.
type KeyData interface {
	isKeyData()
}

// Bytes carries spki DER or raw key bytes.
type Bytes []byte

// JSONWebKey carries a structured key for the jwk format.
type JSONWebKey struct {
	*jwk.JWK
}

func (Bytes) isKeyData()      {}
func (JSONWebKey) isKeyData() {}

// JWK wraps j as KeyData.
func JWK(j *jwk.JWK) JSONWebKey {
	return JSONWebKey{JWK: j}
}

// DigestSigner is implemented by providers that can sign a digest computed
// by the caller, as crypto.Signer requires.
type DigestSigner interface {
	SignDigest(ctx context.Context, key keyhandle.Handle, digest []byte) ([]byte, error)
}
