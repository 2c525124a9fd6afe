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

// Package keyhandle maps opaque key handles to backend key material.
//
// A Handle is an immutable value. It carries the algorithm descriptor, role,
// extractable flag and permitted usages of a key, plus a slot reference into
// the Registry that minted it. It never carries key bytes. Material is
// looked up with Registry.Resolve and released with Registry.Dispose.
//
// Several handles may share one piece of material (a generated key pair is
// registered once and tagged twice, public and private). The material is
// reference counted and closed when its last handle is disposed.
package keyhandle

import (
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Attributes describe the key a handle refers to.
type Attributes struct {
	Algorithm   types.Algorithm
	Role        types.KeyRole
	Extractable bool
	Usages      types.KeyUsage
}

// Handle is an opaque reference to registered key material. The zero value
// never resolves.
type Handle struct {
	registry    uint64
	slot        uint32
	generation  uint32
	algorithm   types.Algorithm
	role        types.KeyRole
	extractable bool
	usages      types.KeyUsage
}

// Algorithm returns the algorithm descriptor the key was created with.
func (h Handle) Algorithm() types.Algorithm {
	return h.algorithm
}

// Role returns whether the handle is a public, private or secret key.
func (h Handle) Role() types.KeyRole {
	return h.role
}

// Extractable reports whether private material may be exported.
func (h Handle) Extractable() bool {
	return h.extractable
}

// Usages returns the operations the handle permits.
func (h Handle) Usages() types.KeyUsage {
	return h.usages
}

// Attributes returns a copy of the handle's attributes.
func (h Handle) Attributes() Attributes {
	return Attributes{
		Algorithm:   h.algorithm,
		Role:        h.role,
		Extractable: h.extractable,
		Usages:      h.usages,
	}
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

// String identifies the handle for logs. It contains no key material.
func (h Handle) String() string {
	if h.IsZero() {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%s %s r%d:%d.%d)",
		h.algorithm.Name, h.role, h.registry, h.slot, h.generation)
}

// KeyPair groups the two handles produced by key generation.
type KeyPair struct {
	Public  Handle
	Private Handle
}
