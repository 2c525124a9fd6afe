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

package keyhandle

import "errors"

var (
	// ErrNilMaterial is returned when registering nil key material.
	ErrNilMaterial = errors.New("keyhandle: key material is required")

	// ErrInvalidAttributes is returned for an unknown role.
	ErrInvalidAttributes = errors.New("keyhandle: invalid key attributes")

	// ErrMaterialType is returned when resolved material has an unexpected type.
	ErrMaterialType = errors.New("keyhandle: unexpected key material type")

	// ErrClosed is returned when using a closed registry.
	ErrClosed = errors.New("keyhandle: registry closed")
)
