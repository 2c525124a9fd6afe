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
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// HTTP routes served by a custodian server.
const (
	PathKeys   = "/v1/keys"
	PathImport = "/v1/keys/import"
	PathRandom = "/v1/random"

	// Per-key routes are PathKeys + "/{id}" + one of these suffixes.
	SuffixSign   = "/sign"
	SuffixVerify = "/verify"
	SuffixExport = "/export"
)

// KeyData is the JSON form of provider.KeyData. Exactly one field is set.
type KeyData struct {
	Bytes []byte   `json:"bytes,omitempty"`
	JWK   *jwk.JWK `json:"jwk,omitempty"`
}

// NewKeyData converts provider data to its JSON form.
func NewKeyData(data provider.KeyData) (KeyData, error) {
	switch d := data.(type) {
	case provider.Bytes:
		return KeyData{Bytes: []byte(d)}, nil
	case provider.JSONWebKey:
		return KeyData{JWK: d.JWK}, nil
	default:
		return KeyData{}, fmt.Errorf("%w: key data %T", types.ErrInvalidFormat, data)
	}
}

// KeyData converts back to provider data.
func (d KeyData) KeyData() (provider.KeyData, error) {
	switch {
	case d.JWK != nil && d.Bytes == nil:
		return provider.JWK(d.JWK), nil
	case d.JWK == nil && d.Bytes != nil:
		return provider.Bytes(d.Bytes), nil
	default:
		return nil, fmt.Errorf("%w: expected exactly one of bytes or jwk", types.ErrInvalidFormat)
	}
}

// Attributes is the JSON form of keyhandle.Attributes.
type Attributes struct {
	Algorithm   types.Algorithm `json:"algorithm"`
	Role        string          `json:"role"`
	Extractable bool            `json:"extractable"`
	Usages      []string        `json:"usages,omitempty"`
}

// NewAttributes converts handle attributes to their JSON form.
func NewAttributes(a keyhandle.Attributes) Attributes {
	return Attributes{
		Algorithm:   a.Algorithm,
		Role:        a.Role.String(),
		Extractable: a.Extractable,
		Usages:      a.Usages.Strings(),
	}
}

// Attributes converts back to handle attributes.
func (a Attributes) Attributes() (keyhandle.Attributes, error) {
	role, err := types.ParseKeyRole(a.Role)
	if err != nil {
		return keyhandle.Attributes{}, err
	}
	usages, err := types.ParseKeyUsages(a.Usages)
	if err != nil {
		return keyhandle.Attributes{}, err
	}
	return keyhandle.Attributes{
		Algorithm:   a.Algorithm,
		Role:        role,
		Extractable: a.Extractable,
		Usages:      usages,
	}, nil
}

type GenerateRequest struct {
	Algorithm   types.Algorithm `json:"algorithm"`
	Extractable bool            `json:"extractable,omitempty"`
}

type ImportRequest struct {
	Format      types.KeyFormat `json:"format"`
	Algorithm   types.Algorithm `json:"algorithm"`
	Extractable bool            `json:"extractable"`
	Usages      []string        `json:"usages,omitempty"`
	Data        KeyData         `json:"data"`
}

// KeyResponse answers generate and import.
type KeyResponse struct {
	ID string `json:"id"`
}

type SignRequest struct {
	Algorithm types.Algorithm `json:"algorithm"`
	Message   []byte          `json:"message"`
}

type SignResponse struct {
	Signature []byte `json:"signature"`
}

type VerifyRequest struct {
	Algorithm types.Algorithm `json:"algorithm"`
	Message   []byte          `json:"message"`
	Signature []byte          `json:"signature"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

type ExportRequest struct {
	Format     types.KeyFormat `json:"format"`
	Attributes Attributes      `json:"attributes"`
}

type ExportResponse struct {
	Data KeyData `json:"data"`
}

type RandomRequest struct {
	Length int `json:"length"`
}

type RandomResponse struct {
	Bytes []byte `json:"bytes"`
}

// ErrorResponse is the body of every non-2xx response. Code is a
// types.ErrorCode value when the failure is part of the shared taxonomy.
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type ListResponse struct {
	Keys []string `json:"keys"`
}
