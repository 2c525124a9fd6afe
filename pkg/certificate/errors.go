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


package certificate

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var (
	// ErrCryptoRequired is returned by NewService without a Crypto.
	ErrCryptoRequired = errors.New("certificate: crypto is required")

	// ErrStorageRequired is returned by NewStore without a storage backend.
	ErrStorageRequired = errors.New("certificate: storage is required")

	// ErrInvalidID is returned for an empty certificate id.
	ErrInvalidID = errors.New("certificate: invalid id")

	// ErrNameMismatch is the cause recorded when a certificate's issuer
	// name does not match the next certificate's subject.
	ErrNameMismatch = errors.New("certificate: issuer name mismatch")
)

// ChainError reports the first certificate in a chain that failed
// validation. Position is the index in the leaf-first chain. It matches
// types.ErrSignatureInvalid and unwraps to the cause.
type ChainError struct {
	Position int
	Err      error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("certificate: chain invalid at position %d: %v", e.Position, e.Err)
}

func (e *ChainError) Is(target error) bool {
	return target == types.ErrSignatureInvalid
}

func (e *ChainError) Unwrap() error {
	return e.Err
}
