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

// Package spki builds and parses DER SubjectPublicKeyInfo structures from a
// fixed table of AlgorithmIdentifiers. It is not a general ASN.1 parser.
//
// P-256 keys are emitted with the ecdsa-with-SHA256 identifier, the
// prime256v1 curve as parameter, and the compressed point. Parsing also
// accepts id-ecPublicKey, a missing or NULL parameter, and uncompressed
// points, which covers keys produced by crypto/x509 and OpenSSL.
package spki

import (
	"crypto/elliptic"
	encoding_asn1 "encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var (
	OIDECDSAWithSHA256 = encoding_asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	OIDECPublicKey     = encoding_asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	OIDPrime256v1      = encoding_asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	OIDEd25519         = encoding_asn1.ObjectIdentifier{1, 3, 101, 112}
)

// Marshal encodes k as SubjectPublicKeyInfo. Private material is ignored.
func Marshal(k encoding.Key) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}

	var (
		algorithm encoding_asn1.ObjectIdentifier
		curve     encoding_asn1.ObjectIdentifier
	)
	switch k.Algorithm {
	case types.AlgorithmECDSA:
		algorithm, curve = OIDECDSAWithSHA256, OIDPrime256v1
	case types.AlgorithmEd25519:
		algorithm = OIDEd25519
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedAlgorithm, k.Algorithm)
	}

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(algorithm)
			if curve != nil {
				b.AddASN1ObjectIdentifier(curve)
			}
		})
		b.AddASN1BitString(k.Public)
	})
	return b.Bytes()
}

// MarshalStandard encodes k the way crypto/x509 does: id-ecPublicKey with
// an uncompressed point for P-256.
func MarshalStandard(k encoding.Key) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if k.Algorithm != types.AlgorithmECDSA {
		return Marshal(k)
	}

	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), k.Public)
	point := make([]byte, encoding.P256UncompressedSize)
	point[0] = 0x04
	x.FillBytes(point[1:33])
	y.FillBytes(point[33:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(OIDECPublicKey)
			b.AddASN1ObjectIdentifier(OIDPrime256v1)
		})
		b.AddASN1BitString(point)
	})
	return b.Bytes()
}

// Parse decodes a SubjectPublicKeyInfo into a public Key. The algorithm and
// curve are derived from the AlgorithmIdentifier.
func Parse(der []byte) (encoding.Key, error) {
	var (
		spki, algID cryptobyte.String
		algorithm   encoding_asn1.ObjectIdentifier
		publicKey   encoding_asn1.BitString
	)

	input := cryptobyte.String(der)
	if !input.ReadASN1(&spki, asn1.SEQUENCE) || !input.Empty() {
		return encoding.Key{}, encoding.Malformed("spki", "expected a single SEQUENCE")
	}
	if !spki.ReadASN1(&algID, asn1.SEQUENCE) {
		return encoding.Key{}, encoding.Malformed("algorithm", "expected AlgorithmIdentifier")
	}
	if !algID.ReadASN1ObjectIdentifier(&algorithm) {
		return encoding.Key{}, encoding.Malformed("algorithm", "expected OBJECT IDENTIFIER")
	}
	params, err := readParameters(&algID)
	if err != nil {
		return encoding.Key{}, err
	}
	if !spki.ReadASN1BitString(&publicKey) || !spki.Empty() {
		return encoding.Key{}, encoding.Malformed("subjectPublicKey", "expected BIT STRING")
	}
	if publicKey.BitLength%8 != 0 {
		return encoding.Key{}, encoding.Malformed("subjectPublicKey", "not a whole number of bytes")
	}

	switch {
	case algorithm.Equal(OIDECDSAWithSHA256), algorithm.Equal(OIDECPublicKey):
		if params != nil && !params.Equal(OIDPrime256v1) {
			return encoding.Key{}, fmt.Errorf("%w: curve %s", types.ErrUnsupportedAlgorithm, params)
		}
		if params == nil && algorithm.Equal(OIDECPublicKey) {
			return encoding.Key{}, encoding.Malformed("parameters", "id-ecPublicKey requires a named curve")
		}
		return parsePoint(types.AlgorithmECDSA, publicKey.Bytes)
	case algorithm.Equal(OIDEd25519):
		if params != nil {
			return encoding.Key{}, encoding.Malformed("parameters", "Ed25519 takes no parameters")
		}
		return parsePoint(types.AlgorithmEd25519, publicKey.Bytes)
	default:
		return encoding.Key{}, fmt.Errorf("%w: algorithm %s", types.ErrUnsupportedAlgorithm, algorithm)
	}
}

// readParameters returns the curve OID, or nil when the parameters are
// absent or NULL.
func readParameters(algID *cryptobyte.String) (encoding_asn1.ObjectIdentifier, error) {
	if algID.Empty() {
		return nil, nil
	}
	if algID.PeekASN1Tag(asn1.NULL) {
		var null cryptobyte.String
		if !algID.ReadASN1(&null, asn1.NULL) || !null.Empty() || !algID.Empty() {
			return nil, encoding.Malformed("parameters", "invalid NULL")
		}
		return nil, nil
	}
	var curve encoding_asn1.ObjectIdentifier
	if !algID.ReadASN1ObjectIdentifier(&curve) || !algID.Empty() {
		return nil, encoding.Malformed("parameters", "expected named curve")
	}
	return curve, nil
}

func parsePoint(alg types.AlgorithmName, point []byte) (encoding.Key, error) {
	k, err := raw.Parse(alg, point)
	if err != nil {
		return encoding.Key{}, encoding.MalformedWrap("subjectPublicKey", err)
	}
	return k, nil
}
