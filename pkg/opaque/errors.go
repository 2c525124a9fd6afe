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


package opaque

import "errors"

var (
	// ErrSignerRequired indicates a nil KeySigner was provided
	ErrSignerRequired = errors.New("opaque: signer is required")

	// ErrPrivateKeyRequired indicates the handle is not a private signing key
	ErrPrivateKeyRequired = errors.New("opaque: private key handle is required")

	// ErrInvalidPublicKey indicates the exported public key could not be decoded
	ErrInvalidPublicKey = errors.New("opaque: invalid public key")

	// ErrInvalidHashFunction indicates a hash the key cannot sign with
	ErrInvalidHashFunction = errors.New("opaque: invalid or unavailable hash function")
)
