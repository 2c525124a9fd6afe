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

import "errors"

// Errors shared by every layer. Packages wrap these with context using
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	// ErrUnsupportedAlgorithm is returned when no provider handles an algorithm name.
	ErrUnsupportedAlgorithm = errors.New("webcrypto: unsupported algorithm")

	// ErrUnsupportedFormat is returned for an unknown key format.
	ErrUnsupportedFormat = errors.New("webcrypto: unsupported key format")

	// ErrInvalidAlgorithm is returned when algorithm parameters are wrong,
	// such as an ECDSA hash other than SHA-256.
	ErrInvalidAlgorithm = errors.New("webcrypto: invalid algorithm parameters")

	// ErrInvalidFormat is returned when key data does not match the requested format.
	ErrInvalidFormat = errors.New("webcrypto: key data does not match format")

	// ErrKeyNotFound is returned when a handle does not resolve.
	ErrKeyNotFound = errors.New("webcrypto: key not found")

	// ErrMalformedInput is returned when encoded input cannot be decoded.
	ErrMalformedInput = errors.New("webcrypto: malformed input")

	// ErrNotExtractable is returned when exporting non-extractable private material.
	ErrNotExtractable = errors.New("webcrypto: key is not extractable")

	// ErrNotImplemented is returned for operations a provider does not offer.
	ErrNotImplemented = errors.New("webcrypto: not implemented")

	// ErrInvalidUsage is returned when a handle's role or usages forbid an operation.
	ErrInvalidUsage = errors.New("webcrypto: key usage not permitted")

	// ErrEmptyChain is returned when validating a chain with no certificates.
	ErrEmptyChain = errors.New("webcrypto: certificate chain is empty")

	// ErrMissingExtension is returned when a certificate lacks a required extension.
	ErrMissingExtension = errors.New("webcrypto: certificate extension missing")

	// ErrMissingIdentifier is returned when a certificate has no DNS name.
	ErrMissingIdentifier = errors.New("webcrypto: certificate identifier missing")

	// ErrSignatureInvalid is returned when a certificate signature does not verify.
	ErrSignatureInvalid = errors.New("webcrypto: signature invalid")

	// ErrIssuerNotFound is returned when a chain cannot be completed.
	ErrIssuerNotFound = errors.New("webcrypto: issuer not found")
)

// errorCodes gives each sentinel a stable name for labels and wire formats.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnsupportedAlgorithm, "unsupported_algorithm"},
	{ErrUnsupportedFormat, "unsupported_format"},
	{ErrInvalidAlgorithm, "invalid_algorithm"},
	{ErrInvalidFormat, "invalid_format"},
	{ErrKeyNotFound, "key_not_found"},
	{ErrMalformedInput, "malformed_input"},
	{ErrNotExtractable, "not_extractable"},
	{ErrNotImplemented, "not_implemented"},
	{ErrInvalidUsage, "invalid_usage"},
	{ErrEmptyChain, "empty_chain"},
	{ErrMissingExtension, "missing_extension"},
	{ErrMissingIdentifier, "missing_identifier"},
	{ErrSignatureInvalid, "signature_invalid"},
	{ErrIssuerNotFound, "issuer_not_found"},
}

// ErrorCode returns the code of the first sentinel err matches, or an
// empty string.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}

// ErrorForCode returns the sentinel for code, or nil for an unknown code.
func ErrorForCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}
