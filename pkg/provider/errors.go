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


package provider

import "errors"

var (
	// ErrRegistryRequired is returned when a provider is built without a registry.
	ErrRegistryRequired = errors.New("provider: registry is required")

	// ErrBackendRequired is returned when a local provider is built without a backend.
	ErrBackendRequired = errors.New("provider: backend is required")

	// ErrCapabilityRequired is returned when a callback provider is built without a capability.
	ErrCapabilityRequired = errors.New("provider: capability is required")
)
