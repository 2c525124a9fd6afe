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


package backend

import "errors"

var (
	// ErrKeyNotFound is returned when a key id is unknown to the backend.
	ErrKeyNotFound = errors.New("backend: key not found")

	// ErrNoPrivateKey is returned when signing or exporting with a public-only key.
	ErrNoPrivateKey = errors.New("backend: key has no private part")

	// ErrKeyClosed is returned when using a key after Close.
	ErrKeyClosed = errors.New("backend: key closed")

	// ErrClosed is returned when using a closed backend.
	ErrClosed = errors.New("backend: closed")

	// ErrInvalidDigest is returned when a prehashed digest has the wrong length.
	ErrInvalidDigest = errors.New("backend: invalid digest")
)
