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

// Package raw handles bare public key bytes: the 33 byte compressed point
// for P-256 and the 32 byte key for Ed25519.
package raw

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"
	"math/big"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Marshal returns the raw public key bytes of k.
func Marshal(k encoding.Key) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return append([]byte(nil), k.Public...), nil
}

// Parse decodes raw public key bytes for alg. P-256 accepts compressed
// and uncompressed points and always yields the compressed form.
func Parse(alg types.AlgorithmName, data []byte) (encoding.Key, error) {
	switch alg {
	case types.AlgorithmECDSA:
		return parseP256(data)
	case types.AlgorithmEd25519:
		if len(data) != ed25519.PublicKeySize {
			return encoding.Key{}, encoding.Malformed("raw", fmt.Sprintf("expected %d bytes, got %d", ed25519.PublicKeySize, len(data)))
		}
		return encoding.Key{
			Algorithm: types.AlgorithmEd25519,
			Curve:     types.CurveEd25519,
			Public:    append([]byte(nil), data...),
		}, nil
	default:
		return encoding.Key{}, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, alg)
	}
}

func parseP256(data []byte) (encoding.Key, error) {
	k := encoding.Key{Algorithm: types.AlgorithmECDSA, Curve: types.CurveP256}
	switch len(data) {
	case encoding.P256CompressedSize:
		if x, _ := elliptic.UnmarshalCompressed(elliptic.P256(), data); x == nil {
			return encoding.Key{}, encoding.Malformed("raw", "not a P-256 point")
		}
		k.Public = append([]byte(nil), data...)
	case encoding.P256UncompressedSize:
		if _, err := ecdh.P256().NewPublicKey(data); err != nil {
			return encoding.Key{}, encoding.Malformed("raw", "not a P-256 point")
		}
		x := new(big.Int).SetBytes(data[1:33])
		y := new(big.Int).SetBytes(data[33:])
		k.Public = elliptic.MarshalCompressed(elliptic.P256(), x, y)
	default:
		return encoding.Key{}, encoding.Malformed("raw", fmt.Sprintf("unexpected point length %d", len(data)))
	}
	return k, nil
}
