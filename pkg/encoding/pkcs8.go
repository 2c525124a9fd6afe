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
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// EncodePKCS8 encodes a private key to ASN.1 DER PKCS#8. A non-empty
// password produces an encrypted PKCS#8 structure.
func EncodePKCS8(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	if len(password) == 0 {
		password = nil
	}
	der, err := pkcs8.MarshalPrivateKey(privateKey, password, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
	}
	return der, nil
}

// DecodePKCS8 decodes PKCS#8 DER, decrypting it when a password is given.
func DecodePKCS8(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	var (
		key any
		err error
	)
	if len(password) == 0 {
		key, err = pkcs8.ParsePKCS8PrivateKey(data)
	} else {
		key, err = pkcs8.ParsePKCS8PrivateKey(data, password)
	}
	if err != nil {
		if isPasswordError(err) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to parse PKCS#8: %w", err)
	}

	privKey, ok := key.(crypto.PrivateKey)
	if !ok {
		return nil, ErrInvalidPrivateKey
	}
	return privKey, nil
}

// isPasswordError matches the messages youmark/pkcs8 returns for a wrong
// or missing password.
func isPasswordError(err error) bool {
	msg := err.Error()
	for _, s := range []string{"incorrect password", "asn1: structure error", "tags don't match"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
