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

import (
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// DecodeKeyData converts import data to an encoding.Key of the named
// algorithm, applying the format checks providers apply. Capabilities use
// it to decode what Callback forwards to them.
func DecodeKeyData(name types.AlgorithmName, format types.KeyFormat, data KeyData) (encoding.Key, error) {
	r, err := rulesFor(name)
	if err != nil {
		return encoding.Key{}, err
	}
	if err := r.checkFormat(format); err != nil {
		return encoding.Key{}, err
	}
	if err := checkData(format, data); err != nil {
		return encoding.Key{}, err
	}
	return r.decode(format, data)
}

// EncodeKeyData converts k to format. Private material is kept only for
// jwk and only when attrs describe a private key.
func EncodeKeyData(format types.KeyFormat, k encoding.Key, attrs keyhandle.Attributes) (KeyData, error) {
	r, err := rulesFor(k.Algorithm)
	if err != nil {
		return nil, err
	}
	if err := r.checkFormat(format); err != nil {
		return nil, err
	}
	if format != types.FormatJWK || attrs.Role != types.RolePrivate {
		k = k.PublicOnly()
	}
	return r.encode(format, k, attrs)
}
