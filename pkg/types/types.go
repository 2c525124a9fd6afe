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

package types

import (
	"fmt"
	"strings"
)

// KeyRole is the role a handle plays for its key material.
type KeyRole uint8

const (
	RoleUnknown KeyRole = iota
	RolePublic
	RolePrivate
	RoleSecret
)

// String returns the string representation.
func (r KeyRole) String() string {
	switch r {
	case RolePublic:
		return "public"
	case RolePrivate:
		return "private"
	case RoleSecret:
		return "secret"
	default:
		return "unknown"
	}
}

// IsValid reports whether r is a known role.
func (r KeyRole) IsValid() bool {
	return r == RolePublic || r == RolePrivate || r == RoleSecret
}

// ParseKeyRole parses a role name produced by KeyRole.String.
func ParseKeyRole(s string) (KeyRole, error) {
	for _, r := range []KeyRole{RolePublic, RolePrivate, RoleSecret} {
		if r.String() == s {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: unknown key role %q", ErrInvalidUsage, s)
}

// KeyUsage is a bitmask of operations a handle may be used for.
type KeyUsage uint8

const (
	UsageSign KeyUsage = 1 << iota
	UsageVerify

	UsageNone KeyUsage = 0
	UsageAll           = UsageSign | UsageVerify
)

var usageNames = []struct {
	usage KeyUsage
	name  string
}{
	{UsageSign, "sign"},
	{UsageVerify, "verify"},
}

// Has reports whether every bit of other is set in u.
func (u KeyUsage) Has(other KeyUsage) bool {
	return u&other == other
}

// Strings returns the usage names in a stable order.
func (u KeyUsage) Strings() []string {
	names := make([]string, 0, len(usageNames))
	for _, n := range usageNames {
		if u.Has(n.usage) {
			names = append(names, n.name)
		}
	}
	return names
}

// String returns a comma separated list of usage names.
func (u KeyUsage) String() string {
	return strings.Join(u.Strings(), ",")
}

// ParseKeyUsages converts usage names into a bitmask.
func ParseKeyUsages(names []string) (KeyUsage, error) {
	var usages KeyUsage
	for _, name := range names {
		found := false
		for _, n := range usageNames {
			if strings.EqualFold(n.name, strings.TrimSpace(name)) {
				usages |= n.usage
				found = true
				break
			}
		}
		if !found {
			return UsageNone, fmt.Errorf("%w: unknown key usage %q", ErrInvalidUsage, name)
		}
	}
	return usages, nil
}

// KeyFormat is a key serialization format.
type KeyFormat string

const (
	// FormatJWK is the JSON Web Key structure (RFC 7517).
	FormatJWK KeyFormat = "jwk"

	// FormatSPKI is a DER encoded SubjectPublicKeyInfo.
	FormatSPKI KeyFormat = "spki"

	// FormatRaw is the bare public key encoding.
	FormatRaw KeyFormat = "raw"
)

// String returns the string representation.
func (f KeyFormat) String() string {
	return string(f)
}

// ParseKeyFormat parses a format name case-insensitively.
func ParseKeyFormat(s string) (KeyFormat, error) {
	switch KeyFormat(strings.ToLower(s)) {
	case FormatJWK:
		return FormatJWK, nil
	case FormatSPKI:
		return FormatSPKI, nil
	case FormatRaw:
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// BackendType identifies where key material lives.
type BackendType string

const (
	// BackendSoftware keeps key material in the local secure key store.
	BackendSoftware BackendType = "software"

	// BackendCallback delegates key material to an external custodian.
	BackendCallback BackendType = "callback"
)

// String returns the string representation.
func (b BackendType) String() string {
	return string(b)
}
