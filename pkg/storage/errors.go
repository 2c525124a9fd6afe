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


package storage

import "errors"

var (
	// ErrClosed is returned when using a closed store.
	ErrClosed = errors.New("storage: closed")

	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned when a create-only write finds an existing key.
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrInvalidID is returned for empty keys and keys escaping the store root.
	ErrInvalidID = errors.New("storage: invalid ID")
)
