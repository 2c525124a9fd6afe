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
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/spki"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// formatSupport records how an algorithm treats a key format.
type formatSupport uint8

const (
	formatUnsupported formatSupport = iota
	formatSupported
	formatNotImplemented
)

// rules holds the local validation shared by the backend providers and
// the callback variant of one algorithm.
type rules struct {
	name    types.AlgorithmName
	curve   types.EllipticCurve
	formats map[types.KeyFormat]formatSupport

	// checkParams validates the sign and verify descriptor.
	checkParams func(alg types.Algorithm) error
}

func rulesFor(name types.AlgorithmName) (*rules, error) {
	switch name {
	case types.AlgorithmECDSA:
		return ecdsaRules, nil
	case types.AlgorithmEd25519:
		return ed25519Rules, nil
	default:
		return nil, fmt.Errorf("%w: %q is not an asymmetric algorithm", types.ErrUnsupportedAlgorithm, name)
	}
}

// keyAlgorithm validates a generate or import descriptor and returns the
// descriptor stored on handles. An empty curve on import is taken from the
// key data.
func (r *rules) keyAlgorithm(alg types.Algorithm, allowEmptyCurve bool) (types.Algorithm, error) {
	if alg.Name != r.name {
		return types.Algorithm{}, fmt.Errorf("%w: expected %s, got %q", types.ErrInvalidAlgorithm, r.name, alg.Name)
	}
	switch {
	case alg.NamedCurve == r.curve:
	case alg.NamedCurve == "" && (allowEmptyCurve || r.name == types.AlgorithmEd25519):
	case alg.NamedCurve == "":
		return types.Algorithm{}, fmt.Errorf("%w: namedCurve is required", types.ErrInvalidAlgorithm)
	default:
		return types.Algorithm{}, fmt.Errorf("%w: curve %q", types.ErrUnsupportedAlgorithm, alg.NamedCurve)
	}
	return types.Algorithm{Name: r.name, NamedCurve: r.curve}, nil
}

func (r *rules) checkFormat(format types.KeyFormat) error {
	switch r.formats[format] {
	case formatSupported:
		return nil
	case formatNotImplemented:
		return fmt.Errorf("%w: %s %s", types.ErrNotImplemented, r.name, format)
	default:
		return fmt.Errorf("%w: %q for %s", types.ErrUnsupportedFormat, format, r.name)
	}
}

// checkData rejects structured data with a binary format and bytes with
// jwk.
func checkData(format types.KeyFormat, data KeyData) error {
	switch d := data.(type) {
	case JSONWebKey:
		if format != types.FormatJWK {
			return fmt.Errorf("%w: structured key with format %s", types.ErrInvalidFormat, format)
		}
		if d.JWK == nil {
			return encoding.Malformed("jwk", "missing key")
		}
	case Bytes:
		if format == types.FormatJWK {
			return fmt.Errorf("%w: bytes with format jwk", types.ErrInvalidFormat)
		}
		if len(d) == 0 {
			return encoding.Malformed(string(format), "empty input")
		}
	default:
		return fmt.Errorf("%w: key data %T", types.ErrInvalidFormat, data)
	}
	return nil
}

// checkImport runs every check that needs no key material.
func (r *rules) checkImport(format types.KeyFormat, data KeyData, alg types.Algorithm) (types.Algorithm, error) {
	keyAlg, err := r.keyAlgorithm(alg, true)
	if err != nil {
		return types.Algorithm{}, err
	}
	if err := r.checkFormat(format); err != nil {
		return types.Algorithm{}, err
	}
	if err := checkData(format, data); err != nil {
		return types.Algorithm{}, err
	}
	return keyAlg, nil
}

// decode converts checked import data to an encoding.Key of this
// algorithm.
func (r *rules) decode(format types.KeyFormat, data KeyData) (encoding.Key, error) {
	var (
		k   encoding.Key
		err error
	)
	switch format {
	case types.FormatJWK:
		k, err = data.(JSONWebKey).ToKey()
	case types.FormatSPKI:
		k, err = spki.Parse(data.(Bytes))
	case types.FormatRaw:
		k, err = raw.Parse(r.name, data.(Bytes))
	default:
		err = r.checkFormat(format)
	}
	if err != nil {
		return encoding.Key{}, err
	}
	if k.Algorithm != r.name {
		return encoding.Key{}, fmt.Errorf("%w: %s key imported as %s", types.ErrInvalidAlgorithm, k.Algorithm, r.name)
	}
	return k, nil
}

// encode converts k to format. Private material is included only for jwk
// and only when k carries it.
func (r *rules) encode(format types.KeyFormat, k encoding.Key, attrs keyhandle.Attributes) (KeyData, error) {
	switch format {
	case types.FormatJWK:
		j, err := jwk.FromKey(k, k.IsPrivate())
		if err != nil {
			return nil, err
		}
		ext := attrs.Extractable
		j.Ext = &ext
		j.KeyOps = attrs.Usages.Strings()
		return JWK(j), nil
	case types.FormatSPKI:
		der, err := spki.Marshal(k)
		if err != nil {
			return nil, err
		}
		return Bytes(der), nil
	case types.FormatRaw:
		b, err := raw.Marshal(k)
		if err != nil {
			return nil, err
		}
		return Bytes(b), nil
	default:
		return nil, r.checkFormat(format)
	}
}

// needsPrivate reports whether exporting h in format reveals secret
// material, and fails for non-extractable keys.
func needsPrivate(format types.KeyFormat, h keyhandle.Handle) (bool, error) {
	if format != types.FormatJWK || h.Role() == types.RolePublic {
		return false, nil
	}
	if !h.Extractable() {
		return false, fmt.Errorf("%w: %s", types.ErrNotExtractable, h)
	}
	return true, nil
}

func (r *rules) checkHandle(h keyhandle.Handle) error {
	if h.IsZero() {
		return fmt.Errorf("%w: %s", types.ErrKeyNotFound, h)
	}
	if h.Algorithm().Name != r.name {
		return fmt.Errorf("%w: %s handle used with %s", types.ErrInvalidAlgorithm, h.Algorithm().Name, r.name)
	}
	return nil
}

func (r *rules) checkSign(h keyhandle.Handle, alg types.Algorithm) error {
	if err := r.checkHandle(h); err != nil {
		return err
	}
	if err := r.checkParams(alg); err != nil {
		return err
	}
	if h.Role() != types.RolePrivate {
		return fmt.Errorf("%w: signing requires a private key, got %s", types.ErrInvalidUsage, h.Role())
	}
	if !h.Usages().Has(types.UsageSign) {
		return fmt.Errorf("%w: key does not allow sign", types.ErrInvalidUsage)
	}
	return nil
}

func (r *rules) checkVerify(h keyhandle.Handle, alg types.Algorithm) error {
	if err := r.checkHandle(h); err != nil {
		return err
	}
	if err := r.checkParams(alg); err != nil {
		return err
	}
	if !h.Usages().Has(types.UsageVerify) {
		return fmt.Errorf("%w: key does not allow verify", types.ErrInvalidUsage)
	}
	return nil
}

// importAttributes derives handle attributes for an imported key. Public
// keys are always extractable and can only verify.
func importAttributes(alg types.Algorithm, role types.KeyRole, extractable bool, usages types.KeyUsage) keyhandle.Attributes {
	if role == types.RolePublic {
		return keyhandle.Attributes{Algorithm: alg, Role: role, Extractable: true, Usages: usages & types.UsageVerify}
	}
	return keyhandle.Attributes{Algorithm: alg, Role: role, Extractable: extractable, Usages: usages & types.UsageSign}
}

// jwkRole returns the role implied by import data.
func jwkRole(data KeyData) types.KeyRole {
	if j, ok := data.(JSONWebKey); ok && j.JWK != nil {
		return j.Role()
	}
	return types.RolePublic
}
