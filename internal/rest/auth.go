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


package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	jwtenc "github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwt"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/ratelimit"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var (
	ErrNoToken        = errors.New("rest: no bearer token")
	ErrMissingSubject = errors.New("rest: token has no subject")
)

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Claims  jwt.MapClaims
}

type identityKey struct{}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the identity stored in ctx, or nil.
func IdentityFrom(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity
}

// Authenticator authenticates HTTP requests.
type Authenticator interface {
	Name() string
	AuthenticateHTTP(r *http.Request) (*Identity, error)
}

// NoOpAuthenticator accepts every request as "anonymous".
type NoOpAuthenticator struct{}

func (NoOpAuthenticator) Name() string { return "noop" }

func (NoOpAuthenticator) AuthenticateHTTP(*http.Request) (*Identity, error) {
	return &Identity{Subject: "anonymous"}, nil
}

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Service verifies signatures, usually webcrypto.Crypto.Subtle().
	Service jwtenc.KeyService

	// Key is a public handle with the verify usage.
	Key keyhandle.Handle

	// Issuer and Audience are enforced when set.
	Issuer   string
	Audience string
}

// JWTAuthenticator accepts ES256 or EdDSA bearer tokens verified by a key
// handle.
type JWTAuthenticator struct {
	service jwtenc.KeyService
	key     keyhandle.Handle
	opts    []jwt.ParserOption
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config *JWTConfig) (*JWTAuthenticator, error) {
	if config == nil || config.Service == nil {
		return nil, fmt.Errorf("rest: jwt authenticator requires a key service")
	}
	if config.Key.IsZero() || config.Key.Role() != types.RolePublic {
		return nil, fmt.Errorf("%w: jwt authenticator requires a public key handle", types.ErrInvalidUsage)
	}
	if _, _, err := jwtenc.AlgorithmFor(config.Key.Algorithm().Name); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	return &JWTAuthenticator{service: config.Service, key: config.Key, opts: opts}, nil
}

func (a *JWTAuthenticator) Name() string { return "jwt" }

// AuthenticateHTTP verifies the bearer token and returns its subject.
func (a *JWTAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	token, err := jwtenc.Parse(r.Context(), a.service, tokenString, a.key, a.opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrMissingSubject
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	return &Identity{Subject: subject, Claims: claims}, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

// SubjectKey rate limits authenticated requests per subject and falls
// back to the client address.
func SubjectKey(r *http.Request) string {
	if identity := IdentityFrom(r.Context()); identity != nil && identity.Subject != "anonymous" {
		return "sub:" + identity.Subject
	}
	return "ip:" + ratelimit.ClientIP(r)
}
