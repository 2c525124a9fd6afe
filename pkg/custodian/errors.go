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


package custodian

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var (
	// ErrBackendRequired is returned by NewWallet without a backend.
	ErrBackendRequired = errors.New("custodian: backend is required")

	// ErrURLRequired is returned by NewClient without a base URL.
	ErrURLRequired = errors.New("custodian: base URL is required")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("custodian: closed")
)

// RemoteError is a failure reported by a custodian server. It matches the
// shared sentinel for its code with errors.Is.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("custodian: remote error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("custodian: remote error %s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap returns the shared sentinel for the error code, if any.
func (e *RemoteError) Unwrap() error {
	return types.ErrorForCode(e.Code)
}

func unknownKey(id string) error {
	return fmt.Errorf("%w: custodian key %q", types.ErrKeyNotFound, id)
}
