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


package webcrypto

import "errors"

var (
	// ErrBackendRequired is returned by New without a backend.
	ErrBackendRequired = errors.New("webcrypto: backend is required")

	// ErrQuotaExceeded is returned when GetRandomValues is asked for more
	// than MaxRandomValues bytes.
	ErrQuotaExceeded = errors.New("webcrypto: random values quota exceeded")

	// ErrNotPersistent is returned by key persistence operations when the
	// keys are not held in a backend.Loader.
	ErrNotPersistent = errors.New("webcrypto: keys are not persistent")
)
