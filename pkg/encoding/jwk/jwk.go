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

// Package jwk converts keys to and from JSON Web Keys (RFC 7517, RFC 8037).
// Only EC keys on P-256 and OKP keys on Ed25519 are supported.
package jwk

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// JWK represents a JSON Web Key.
type JWK struct {
	Kty    string   `json:"kty"`
	Use    string   `json:"use,omitempty"`
	Alg    string   `json:"alg,omitempty"`
	Kid    string   `json:"kid,omitempty"`
	Crv    string   `json:"crv,omitempty"`
	X      string   `json:"x,omitempty"`
	Y      string   `json:"y,omitempty"`
	D      string   `json:"d,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
	Ext    *bool    `json:"ext,omitempty"`
}

// KeyType represents the key type (kty) parameter values
type KeyType string

const (
	KeyTypeEC  KeyType = "EC"
	KeyTypeOKP KeyType = "OKP"
)

const coordinateSize = 32

var b64 = base64.RawURLEncoding

// FromKey builds a JWK. Private material is included only when
// includePrivate is set and the key carries it.
func FromKey(k encoding.Key, includePrivate bool) (*JWK, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}

	var jwk *JWK
	switch k.Algorithm {
	case types.AlgorithmECDSA:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), k.Public)
		jwk = &JWK{
			Kty: string(KeyTypeEC),
			Crv: string(types.CurveP256),
			X:   b64.EncodeToString(x.FillBytes(make([]byte, coordinateSize))),
			Y:   b64.EncodeToString(y.FillBytes(make([]byte, coordinateSize))),
		}
	case types.AlgorithmEd25519:
		jwk = &JWK{
			Kty: string(KeyTypeOKP),
			Crv: string(types.CurveEd25519),
			X:   b64.EncodeToString(k.Public),
		}
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, k.Algorithm)
	}

	if includePrivate && k.IsPrivate() {
		jwk.D = b64.EncodeToString(k.Private)
	}
	return jwk, nil
}

// ToKey decodes and validates the JWK. Decoding failures name the
// offending member.
func (jwk *JWK) ToKey() (encoding.Key, error) {
	switch KeyType(jwk.Kty) {
	case KeyTypeEC:
		return jwk.toECKey()
	case KeyTypeOKP:
		return jwk.toOKPKey()
	case "":
		return encoding.Key{}, encoding.Malformed("kty", "missing")
	default:
		return encoding.Key{}, fmt.Errorf("%w: kty %q", types.ErrUnsupportedAlgorithm, jwk.Kty)
	}
}

func (jwk *JWK) toECKey() (encoding.Key, error) {
	if jwk.Crv == "" {
		return encoding.Key{}, encoding.Malformed("crv", "missing")
	}
	if jwk.Crv != string(types.CurveP256) {
		return encoding.Key{}, fmt.Errorf("%w: crv %q", types.ErrUnsupportedAlgorithm, jwk.Crv)
	}
	x, err := decodeMember("x", jwk.X, coordinateSize)
	if err != nil {
		return encoding.Key{}, err
	}
	y, err := decodeMember("y", jwk.Y, coordinateSize)
	if err != nil {
		return encoding.Key{}, err
	}

	point := make([]byte, 0, encoding.P256UncompressedSize)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)
	if _, err := ecdh.P256().NewPublicKey(point); err != nil {
		return encoding.Key{}, encoding.Malformed("x", "point is not on P-256")
	}
	xi := new(big.Int).SetBytes(x)
	yi := new(big.Int).SetBytes(y)

	k := encoding.Key{
		Algorithm: types.AlgorithmECDSA,
		Curve:     types.CurveP256,
		Public:    elliptic.MarshalCompressed(elliptic.P256(), xi, yi),
	}
	if jwk.D == "" {
		return k, nil
	}

	d, err := decodeMember("d", jwk.D, encoding.P256ScalarSize)
	if err != nil {
		return encoding.Key{}, err
	}
	priv, err := encoding.ECDSAPrivateKeyFromScalar(d)
	if err != nil {
		return encoding.Key{}, err
	}
	if priv.X.Cmp(xi) != 0 || priv.Y.Cmp(yi) != 0 {
		return encoding.Key{}, encoding.Malformed("d", "does not match public key")
	}
	k.Private = d
	return k, nil
}

func (jwk *JWK) toOKPKey() (encoding.Key, error) {
	if jwk.Crv == "" {
		return encoding.Key{}, encoding.Malformed("crv", "missing")
	}
	if jwk.Crv != string(types.CurveEd25519) {
		return encoding.Key{}, fmt.Errorf("%w: crv %q", types.ErrUnsupportedAlgorithm, jwk.Crv)
	}
	x, err := decodeMember("x", jwk.X, ed25519.PublicKeySize)
	if err != nil {
		return encoding.Key{}, err
	}

	k := encoding.Key{
		Algorithm: types.AlgorithmEd25519,
		Curve:     types.CurveEd25519,
		Public:    x,
	}
	if jwk.D == "" {
		return k, nil
	}

	d, err := decodeMember("d", jwk.D, ed25519.SeedSize)
	if err != nil {
		return encoding.Key{}, err
	}
	derived := ed25519.NewKeyFromSeed(d).Public().(ed25519.PublicKey)
	if !derived.Equal(ed25519.PublicKey(x)) {
		return encoding.Key{}, encoding.Malformed("d", "does not match public key")
	}
	k.Private = d
	return k, nil
}

func decodeMember(name, value string, size int) ([]byte, error) {
	if value == "" {
		return nil, encoding.Malformed(name, "missing")
	}
	decoded, err := b64.DecodeString(value)
	if err != nil {
		return nil, encoding.MalformedWrap(name, err)
	}
	if len(decoded) != size {
		return nil, encoding.Malformed(name, fmt.Sprintf("expected %d bytes, got %d", size, len(decoded)))
	}
	return decoded, nil
}

// IsPrivate reports whether the JWK carries a private component.
func (jwk *JWK) IsPrivate() bool {
	return jwk.D != ""
}

// Role returns the role a key imported from this JWK takes.
func (jwk *JWK) Role() types.KeyRole {
	if jwk.IsPrivate() {
		return types.RolePrivate
	}
	return types.RolePublic
}

// Public returns a copy with the private member removed.
func (jwk *JWK) Public() *JWK {
	public := *jwk
	public.D = ""
	if jwk.KeyOps != nil {
		public.KeyOps = append([]string(nil), jwk.KeyOps...)
	}
	return &public
}

// Marshal encodes the JWK as compact JSON.
func (jwk *JWK) Marshal() ([]byte, error) {
	return json.Marshal(jwk)
}

// MarshalIndent encodes the JWK as indented JSON.
func (jwk *JWK) MarshalIndent(prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(jwk, prefix, indent)
}

// Unmarshal parses JSON into a JWK.
func Unmarshal(data []byte) (*JWK, error) {
	var jwk JWK
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, encoding.MalformedWrap("jwk", err)
	}
	return &jwk, nil
}
