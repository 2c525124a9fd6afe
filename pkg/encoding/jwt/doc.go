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


// Package jwt signs and verifies JSON Web Tokens with key handles.
//
// SigningMethod implements jwt.SigningMethod from golang-jwt/jwt over a
// handle: ES256 for ECDSA P-256 and EdDSA for Ed25519. Both produce the
// raw 64 byte signatures JWS expects, so tokens verify with any standard
// JOSE library.
//
// Signing with a handle:
//
//	token, err := jwt.Sign(ctx, c.Subtle(), pair.Private, jwtlib.MapClaims{"sub": "alice"})
//
// Verifying against a public handle:
//
//	parsed, err := jwt.Parse(ctx, c.Subtle(), token, pair.Public)
//
// When no key id is given, Sign sets kid to the RFC 7638 thumbprint of
// the public key.
package jwt
