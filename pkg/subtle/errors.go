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


package subtle

import "errors"

var (
	// ErrNoProviders is returned when a Subtle is built without providers.
	ErrNoProviders = errors.New("subtle: no providers configured")

	// ErrDuplicateRoute is returned when two providers serve the same algorithm.
	ErrDuplicateRoute = errors.New("subtle: algorithm registered twice")

	// ErrClassMismatch is returned when a provider is registered under the
	// wrong operation class, such as a digest name on a key provider.
	ErrClassMismatch = errors.New("subtle: provider algorithm in wrong operation class")
)
