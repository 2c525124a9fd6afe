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

package jwk

import (
	"crypto"
	"encoding/base64"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// Thumbprint computes the RFC 7638 thumbprint of the public part of the
// key using hashFunc, base64url encoded.
func (jwk *JWK) Thumbprint(hashFunc crypto.Hash) (string, error) {
	k, err := jwk.ToKey()
	if err != nil {
		return "", err
	}
	pub, err := k.PublicKey()
	if err != nil {
		return "", err
	}

	joseKey := jose.JSONWebKey{Key: pub}
	if !joseKey.Valid() {
		return "", fmt.Errorf("jwk: key rejected by thumbprint encoder")
	}
	sum, err := joseKey.Thumbprint(hashFunc)
	if err != nil {
		return "", fmt.Errorf("jwk: thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// ThumbprintSHA256 computes the SHA-256 thumbprint, the common choice
// for key ids.
func (jwk *JWK) ThumbprintSHA256() (string, error) {
	return jwk.Thumbprint(crypto.SHA256)
}

// WithKid returns a copy whose kid is the SHA-256 thumbprint.
func (jwk *JWK) WithKid() (*JWK, error) {
	kid, err := jwk.ThumbprintSHA256()
	if err != nil {
		return nil, err
	}
	out := *jwk
	out.Kid = kid
	return &out, nil
}
