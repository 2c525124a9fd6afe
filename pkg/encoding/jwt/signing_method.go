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


package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var (
	ErrInvalidSignatureAlgorithm = errors.New("jwt: invalid signature algorithm")
	ErrInvalidKey                = errors.New("jwt: key must be a keyhandle.Handle")
)

// KeyService is the subset of subtle.Subtle used for signing.
type KeyService interface {
	Sign(ctx context.Context, alg types.Algorithm, key keyhandle.Handle, data []byte) ([]byte, error)
	Verify(ctx context.Context, alg types.Algorithm, key keyhandle.Handle, signature, data []byte) (bool, error)
	ExportKey(ctx context.Context, format types.KeyFormat, key keyhandle.Handle) (provider.KeyData, error)
}

// SigningMethod implements jwt.SigningMethod for key handles. The key
// passed to Sign and Verify must be a keyhandle.Handle.
type SigningMethod struct {
	ctx       context.Context
	service   KeyService
	alg       string
	algorithm types.Algorithm
}

var _ jwt.SigningMethod = (*SigningMethod)(nil)

// NewSigningMethod returns the signing method for handles of the named
// algorithm. ctx is used for every Sign and Verify call.
func NewSigningMethod(ctx context.Context, service KeyService, name types.AlgorithmName) (*SigningMethod, error) {
	alg, algorithm, err := AlgorithmFor(name)
	if err != nil {
		return nil, err
	}
	return &SigningMethod{ctx: ctx, service: service, alg: alg, algorithm: algorithm}, nil
}

// AlgorithmFor maps an algorithm name to its JWS "alg" value and the
// descriptor used to sign with it.
func AlgorithmFor(name types.AlgorithmName) (string, types.Algorithm, error) {
	switch name {
	case types.AlgorithmECDSA:
		return jwt.SigningMethodES256.Alg(), types.ECDSAWithSHA256(), nil
	case types.AlgorithmEd25519:
		return jwt.SigningMethodEdDSA.Alg(), types.Ed25519(), nil
	default:
		return "", types.Algorithm{}, fmt.Errorf("%w: %q", ErrInvalidSignatureAlgorithm, name)
	}
}

// Alg returns the JWS algorithm, ES256 or EdDSA.
func (m *SigningMethod) Alg() string {
	return m.alg
}

func (m *SigningMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	h, ok := key.(keyhandle.Handle)
	if !ok {
		return nil, ErrInvalidKey
	}
	return m.service.Sign(m.ctx, m.algorithm, h, []byte(signingString))
}

func (m *SigningMethod) Verify(signingString string, signature []byte, key interface{}) error {
	h, ok := key.(keyhandle.Handle)
	if !ok {
		return ErrInvalidKey
	}
	valid, err := m.service.Verify(m.ctx, m.algorithm, h, signature, []byte(signingString))
	if err != nil {
		return err
	}
	if !valid {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

// Sign creates a signed token for claims with the private handle key.
// An empty kid defaults to the JWK thumbprint of the public key.
func Sign(ctx context.Context, service KeyService, key keyhandle.Handle, claims jwt.Claims) (string, error) {
	return SignWithKID(ctx, service, key, claims, "")
}

// SignWithKID is Sign with an explicit key id.
func SignWithKID(ctx context.Context, service KeyService, key keyhandle.Handle, claims jwt.Claims, kid string) (string, error) {
	method, err := NewSigningMethod(ctx, service, key.Algorithm().Name)
	if err != nil {
		return "", err
	}
	if kid == "" {
		if kid, err = Thumbprint(ctx, service, key); err != nil {
			return "", err
		}
	}
	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}

// Thumbprint returns the RFC 7638 thumbprint of the public key behind
// key. It works for private handles because raw export only reveals the
// public key.
func Thumbprint(ctx context.Context, service KeyService, key keyhandle.Handle) (string, error) {
	data, err := service.ExportKey(ctx, types.FormatRaw, key)
	if err != nil {
		return "", err
	}
	b, ok := data.(provider.Bytes)
	if !ok {
		return "", fmt.Errorf("%w: raw export returned %T", types.ErrInvalidFormat, data)
	}
	k, err := raw.Parse(key.Algorithm().Name, b)
	if err != nil {
		return "", err
	}
	public, err := jwk.FromKey(k, false)
	if err != nil {
		return "", err
	}
	return public.ThumbprintSHA256()
}

// Parse verifies tokenString against the public handle key and returns
// the token with MapClaims. Only the algorithm of key is accepted.
func Parse(ctx context.Context, service KeyService, tokenString string, key keyhandle.Handle, opts ...jwt.ParserOption) (*jwt.Token, error) {
	return ParseWithClaims(ctx, service, tokenString, jwt.MapClaims{}, key, opts...)
}

// ParseWithClaims is Parse with a caller supplied claims type. The
// signature is checked through service, so public handles held by a
// custodian work the same as local ones. Claims are then validated with
// the given parser options.
func ParseWithClaims(ctx context.Context, service KeyService, tokenString string, claims jwt.Claims, key keyhandle.Handle, opts ...jwt.ParserOption) (*jwt.Token, error) {
	method, err := NewSigningMethod(ctx, service, key.Algorithm().Name)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(opts...)
	token, parts, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, err
	}
	if token.Method.Alg() != method.Alg() {
		return nil, fmt.Errorf("%w: token uses %s, key requires %s", jwt.ErrTokenSignatureInvalid, token.Method.Alg(), method.Alg())
	}

	signature, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jwt.ErrTokenMalformed, err)
	}
	if err := method.Verify(strings.Join(parts[:2], "."), signature, key); err != nil {
		return nil, fmt.Errorf("%w: %w", jwt.ErrTokenSignatureInvalid, err)
	}
	if err := jwt.NewValidator(opts...).Validate(claims); err != nil {
		return nil, err
	}

	token.Signature = signature
	token.Valid = true
	return token, nil
}
