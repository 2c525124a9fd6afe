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

package encoding

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"
	"math/big"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

const (
	// P256CompressedSize is the length of a compressed P-256 point.
	P256CompressedSize = 33

	// P256UncompressedSize is the length of an uncompressed P-256 point.
	P256UncompressedSize = 65

	// P256ScalarSize is the length of a P-256 private scalar.
	P256ScalarSize = 32
)

// Key is the format-neutral representation exchanged between backends and
// the jwk, spki and raw encoders.
//
// Public holds the compressed point for P-256 and the 32 byte key for
// Ed25519. Private, when present, holds the P-256 scalar or the Ed25519 seed.
type Key struct {
	Algorithm types.AlgorithmName
	Curve     types.EllipticCurve
	Public    []byte
	Private   []byte
}

// IsPrivate reports whether the key carries secret material.
func (k Key) IsPrivate() bool {
	return len(k.Private) > 0
}

// PublicOnly returns a copy without secret material.
func (k Key) PublicOnly() Key {
	return Key{
		Algorithm: k.Algorithm,
		Curve:     k.Curve,
		Public:    append([]byte(nil), k.Public...),
	}
}

// Validate checks lengths and curve membership.
func (k Key) Validate() error {
	switch k.Algorithm {
	case types.AlgorithmECDSA:
		if k.Curve != types.CurveP256 {
			return fmt.Errorf("%w: curve %q", types.ErrUnsupportedAlgorithm, k.Curve)
		}
		if _, err := k.ecdsaPublicKey(); err != nil {
			return err
		}
		if k.IsPrivate() && len(k.Private) != P256ScalarSize {
			return Malformed("d", fmt.Sprintf("expected %d bytes, got %d", P256ScalarSize, len(k.Private)))
		}
	case types.AlgorithmEd25519:
		if len(k.Public) != ed25519.PublicKeySize {
			return Malformed("x", fmt.Sprintf("expected %d bytes, got %d", ed25519.PublicKeySize, len(k.Public)))
		}
		if k.IsPrivate() && len(k.Private) != ed25519.SeedSize {
			return Malformed("d", fmt.Sprintf("expected %d bytes, got %d", ed25519.SeedSize, len(k.Private)))
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, k.Algorithm)
	}
	return nil
}

// PublicKey converts the key to a crypto.PublicKey.
func (k Key) PublicKey() (crypto.PublicKey, error) {
	switch k.Algorithm {
	case types.AlgorithmECDSA:
		return k.ecdsaPublicKey()
	case types.AlgorithmEd25519:
		if len(k.Public) != ed25519.PublicKeySize {
			return nil, Malformed("public key", "invalid Ed25519 length")
		}
		return ed25519.PublicKey(append([]byte(nil), k.Public...)), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, k.Algorithm)
	}
}

// PrivateKey converts the key to a crypto.PrivateKey.
func (k Key) PrivateKey() (crypto.PrivateKey, error) {
	if !k.IsPrivate() {
		return nil, ErrInvalidPrivateKey
	}
	switch k.Algorithm {
	case types.AlgorithmECDSA:
		return ECDSAPrivateKeyFromScalar(k.Private)
	case types.AlgorithmEd25519:
		if len(k.Private) != ed25519.SeedSize {
			return nil, Malformed("d", "invalid Ed25519 seed length")
		}
		return ed25519.NewKeyFromSeed(k.Private), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, k.Algorithm)
	}
}

func (k Key) ecdsaPublicKey() (*ecdsa.PublicKey, error) {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), k.Public)
	if x == nil {
		return nil, Malformed("public key", "not a compressed P-256 point")
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}

// FromPublicKey builds a Key from an ECDSA P-256 or Ed25519 public key.
func FromPublicKey(pub crypto.PublicKey) (Key, error) {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		if key == nil || key.Curve != elliptic.P256() {
			return Key{}, fmt.Errorf("%w: only P-256 is supported", types.ErrUnsupportedAlgorithm)
		}
		return Key{
			Algorithm: types.AlgorithmECDSA,
			Curve:     types.CurveP256,
			Public:    elliptic.MarshalCompressed(key.Curve, key.X, key.Y),
		}, nil
	case ed25519.PublicKey:
		if len(key) != ed25519.PublicKeySize {
			return Key{}, ErrInvalidPublicKey
		}
		return Key{
			Algorithm: types.AlgorithmEd25519,
			Curve:     types.CurveEd25519,
			Public:    append([]byte(nil), key...),
		}, nil
	default:
		return Key{}, fmt.Errorf("%w: public key type %T", types.ErrUnsupportedAlgorithm, pub)
	}
}

// FromPrivateKey builds a Key, including secret material, from an ECDSA
// P-256 or Ed25519 private key.
func FromPrivateKey(priv crypto.PrivateKey) (Key, error) {
	switch key := priv.(type) {
	case *ecdsa.PrivateKey:
		if key == nil {
			return Key{}, ErrInvalidPrivateKey
		}
		k, err := FromPublicKey(&key.PublicKey)
		if err != nil {
			return Key{}, err
		}
		k.Private = key.D.FillBytes(make([]byte, P256ScalarSize))
		return k, nil
	case ed25519.PrivateKey:
		if len(key) != ed25519.PrivateKeySize {
			return Key{}, ErrInvalidPrivateKey
		}
		k, err := FromPublicKey(key.Public())
		if err != nil {
			return Key{}, err
		}
		k.Private = append([]byte(nil), key.Seed()...)
		return k, nil
	default:
		return Key{}, fmt.Errorf("%w: private key type %T", types.ErrUnsupportedAlgorithm, priv)
	}
}

// ECDSAPrivateKeyFromScalar rebuilds a P-256 private key from its scalar.
// The scalar is range checked by crypto/ecdh.
func ECDSAPrivateKeyFromScalar(d []byte) (*ecdsa.PrivateKey, error) {
	ecdhKey, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return nil, MalformedWrap("d", err)
	}
	point := ecdhKey.PublicKey().Bytes()
	if len(point) != P256UncompressedSize {
		return nil, ErrInvalidPrivateKey
	}
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(point[1:33]),
			Y:     new(big.Int).SetBytes(point[33:]),
		},
		D: new(big.Int).SetBytes(d),
	}, nil
}
