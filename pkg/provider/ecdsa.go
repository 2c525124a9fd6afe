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


package provider

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var ecdsaRules = &rules{
	name:  types.AlgorithmECDSA,
	curve: types.CurveP256,
	formats: map[types.KeyFormat]formatSupport{
		types.FormatJWK:  formatSupported,
		types.FormatSPKI: formatSupported,
		types.FormatRaw:  formatSupported,
	},
	checkParams: func(alg types.Algorithm) error {
		if alg.Name != types.AlgorithmECDSA {
			return fmt.Errorf("%w: expected ECDSA, got %q", types.ErrInvalidAlgorithm, alg.Name)
		}
		if alg.Hash != types.HashSHA256 {
			return fmt.Errorf("%w: ECDSA requires SHA-256, got %q", types.ErrInvalidAlgorithm, alg.Hash)
		}
		if alg.NamedCurve != "" && alg.NamedCurve != types.CurveP256 {
			return fmt.Errorf("%w: curve %q", types.ErrInvalidAlgorithm, alg.NamedCurve)
		}
		return nil
	},
}

// ECDSA is the P-256 provider. Signatures are raw r||s over SHA-256.
type ECDSA struct {
	local
}

var _ Provider = (*ECDSA)(nil)

// NewECDSA returns an ECDSA provider over be.
func NewECDSA(registry *keyhandle.Registry, be backend.Backend) (*ECDSA, error) {
	l, err := newLocal(types.AlgorithmECDSA, registry, be)
	if err != nil {
		return nil, err
	}
	return &ECDSA{local: l}, nil
}

// SignDigest signs a SHA-256 digest computed by the caller. It requires a
// backend key implementing backend.DigestSigner.
func (p *ECDSA) SignDigest(ctx context.Context, h keyhandle.Handle, digest []byte) ([]byte, error) {
	if err := p.rules.checkSign(h, types.ECDSAWithSHA256()); err != nil {
		return nil, err
	}
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("%w: expected %d byte digest", backend.ErrInvalidDigest, sha256.Size)
	}
	key, err := p.resolve(h)
	if err != nil {
		return nil, err
	}
	signer, ok := key.(backend.DigestSigner)
	if !ok {
		return nil, fmt.Errorf("%w: backend cannot sign digests", types.ErrNotImplemented)
	}
	return signer.SignDigest(ctx, digest)
}
