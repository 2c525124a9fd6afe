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

package encoding

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var (
	// ErrInvalidPrivateKey is returned when a private key is nil or invalid
	ErrInvalidPrivateKey = errors.New("encoding: invalid private key")

	// ErrInvalidPublicKey is returned when a public key is nil or invalid
	ErrInvalidPublicKey = errors.New("encoding: invalid public key")

	// ErrInvalidData is returned when data is nil or empty
	ErrInvalidData = errors.New("encoding: invalid data")

	// ErrInvalidPassword is returned when a password is incorrect
	ErrInvalidPassword = errors.New("encoding: invalid password")

	// ErrInvalidPEMEncoding is returned when PEM decoding fails
	ErrInvalidPEMEncoding = errors.New("encoding: invalid PEM encoding")
)

// MalformedInputError reports which part of an encoded input could not be
// decoded. It matches types.ErrMalformedInput with errors.Is.
type MalformedInputError struct {
	Field  string
	Reason string
	Err    error
}

// Malformed returns a MalformedInputError for field.
func Malformed(field, reason string) error {
	return &MalformedInputError{Field: field, Reason: reason}
}

// MalformedWrap returns a MalformedInputError for field wrapping err.
func MalformedWrap(field string, err error) error {
	return &MalformedInputError{Field: field, Err: err}
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("%s: %s", types.ErrMalformedInput, e.Field)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches types.ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool {
	return target == types.ErrMalformedInput
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}
