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

package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// Algorithm Names
// =============================================================================
// The algorithm set is closed. Adding an algorithm means adding a constant
// here, a provider, and a dispatch route; nothing is registered at runtime.

// AlgorithmName identifies a supported algorithm.
type AlgorithmName string

const (
	// AlgorithmECDSA is ECDSA over NIST P-256.
	AlgorithmECDSA AlgorithmName = "ECDSA"

	// AlgorithmEd25519 is the Edwards-curve signature scheme.
	AlgorithmEd25519 AlgorithmName = "Ed25519"

	// AlgorithmSHA1 is the SHA-1 message digest.
	AlgorithmSHA1 AlgorithmName = "SHA-1"
)

var algorithmNames = []AlgorithmName{
	AlgorithmECDSA,
	AlgorithmEd25519,
	AlgorithmSHA1,
}

// AlgorithmNames returns every supported algorithm name.
func AlgorithmNames() []AlgorithmName {
	names := make([]AlgorithmName, len(algorithmNames))
	copy(names, algorithmNames)
	return names
}

// String returns the string representation.
func (a AlgorithmName) String() string {
	return string(a)
}

// Class returns the operation class the algorithm belongs to.
// Unknown names return ClassUnknown.
func (a AlgorithmName) Class() OperationClass {
	switch a {
	case AlgorithmECDSA, AlgorithmEd25519:
		return ClassAsymmetric
	case AlgorithmSHA1:
		return ClassDigest
	default:
		return ClassUnknown
	}
}

// ParseAlgorithmName parses an algorithm name case-insensitively.
func ParseAlgorithmName(s string) (AlgorithmName, error) {
	for _, name := range algorithmNames {
		if strings.EqualFold(string(name), s) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
}

// =============================================================================
// Operation Classes
// =============================================================================

// OperationClass separates digest algorithms from key-based algorithms so
// that a name can never route to the wrong kind of provider.
type OperationClass uint8

const (
	ClassUnknown OperationClass = iota
	ClassAsymmetric
	ClassDigest
)

// String returns the string representation.
func (c OperationClass) String() string {
	switch c {
	case ClassAsymmetric:
		return "asymmetric"
	case ClassDigest:
		return "digest"
	default:
		return "unknown"
	}
}

// =============================================================================
// Curves and Hashes
// =============================================================================

// EllipticCurve represents a named curve.
type EllipticCurve string

const (
	// CurveP256 is NIST P-256 (secp256r1, prime256v1).
	CurveP256 EllipticCurve = "P-256"

	// CurveEd25519 is the Edwards curve used by Ed25519.
	CurveEd25519 EllipticCurve = "Ed25519"
)

// String returns the string representation.
func (c EllipticCurve) String() string {
	return string(c)
}

// HashName names a digest used as a signature parameter.
type HashName string

const (
	HashSHA1   HashName = "SHA-1"
	HashSHA256 HashName = "SHA-256"
)

// String returns the string representation.
func (h HashName) String() string {
	return string(h)
}

// =============================================================================
// Algorithm Descriptor
// =============================================================================

// Algorithm describes an algorithm and its parameters. NamedCurve applies to
// key generation and import; Hash applies to ECDSA sign and verify.
type Algorithm struct {
	Name       AlgorithmName `json:"name"`
	NamedCurve EllipticCurve `json:"namedCurve,omitempty"`
	Hash       HashName      `json:"hash,omitempty"`
}

// ECDSAP256 returns the descriptor for P-256 key generation and import.
func ECDSAP256() Algorithm {
	return Algorithm{Name: AlgorithmECDSA, NamedCurve: CurveP256}
}

// ECDSAWithSHA256 returns the descriptor for P-256 signing with SHA-256.
func ECDSAWithSHA256() Algorithm {
	return Algorithm{Name: AlgorithmECDSA, NamedCurve: CurveP256, Hash: HashSHA256}
}

// Ed25519 returns the Ed25519 descriptor.
func Ed25519() Algorithm {
	return Algorithm{Name: AlgorithmEd25519, NamedCurve: CurveEd25519}
}

// SHA1 returns the SHA-1 digest descriptor.
func SHA1() Algorithm {
	return Algorithm{Name: AlgorithmSHA1}
}

// String returns a human readable form such as "ECDSA(P-256, SHA-256)".
func (a Algorithm) String() string {
	var params []string
	if a.NamedCurve != "" {
		params = append(params, a.NamedCurve.String())
	}
	if a.Hash != "" {
		params = append(params, a.Hash.String())
	}
	if len(params) == 0 {
		return a.Name.String()
	}
	return fmt.Sprintf("%s(%s)", a.Name, strings.Join(params, ", "))
}

// WithHash returns a copy of the descriptor using the given hash.
func (a Algorithm) WithHash(hash HashName) Algorithm {
	a.Hash = hash
	return a
}
