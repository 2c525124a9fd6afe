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
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// PEM block types
const (
	PEMTypeCertificate = "CERTIFICATE"
	PEMTypePublicKey   = "PUBLIC KEY"
)

// DecodeCertificate parses a single certificate given as PEM, base64
// encoded DER, or raw DER.
//
// Example:
//
//	cert, err := encoding.DecodeCertificate([]byte(base64Cert))
func DecodeCertificate(data []byte) (*x509.Certificate, error) {
	der, err := certificateDER(data)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, MalformedWrap("certificate", err)
	}
	return cert, nil
}

func certificateDER(data []byte) ([]byte, error) {
	// DER starts with a SEQUENCE tag and must not be trimmed.
	if len(data) > 0 && data[0] == 0x30 {
		return data, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrInvalidData
	}

	if bytes.HasPrefix(trimmed, []byte("-----BEGIN")) {
		block, _ := pem.Decode(trimmed)
		if block == nil || block.Type != PEMTypeCertificate {
			return nil, ErrInvalidPEMEncoding
		}
		return block.Bytes, nil
	}

	compact := strings.Join(strings.Fields(string(trimmed)), "")
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		der, err = base64.RawURLEncoding.DecodeString(compact)
		if err != nil {
			return nil, MalformedWrap("certificate", err)
		}
	}
	return der, nil
}

// DecodeCertificatesPEM parses every CERTIFICATE block in data, in order.
func DecodeCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != PEMTypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, MalformedWrap("certificate", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrInvalidPEMEncoding
	}
	return certs, nil
}

// EncodeCertificatePEM encodes an X.509 certificate to PEM format.
func EncodeCertificatePEM(cert *x509.Certificate) ([]byte, error) {
	if cert == nil {
		return nil, ErrInvalidData
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: cert.Raw}), nil
}

// EncodeCertificatesPEM concatenates the PEM encodings of certs.
func EncodeCertificatesPEM(certs []*x509.Certificate) ([]byte, error) {
	var buf bytes.Buffer
	for i, cert := range certs {
		if cert == nil {
			return nil, fmt.Errorf("%w: certificate %d is nil", ErrInvalidData, i)
		}
		if err := pem.Encode(&buf, &pem.Block{Type: PEMTypeCertificate, Bytes: cert.Raw}); err != nil {
			return nil, fmt.Errorf("failed to encode PEM: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// EncodePublicKeyPEM wraps DER SubjectPublicKeyInfo bytes in a PUBLIC KEY block.
func EncodePublicKeyPEM(spki []byte) ([]byte, error) {
	if len(spki) == 0 {
		return nil, ErrInvalidData
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypePublicKey, Bytes: spki}), nil
}

// DecodePublicKeyPEM returns the DER bytes of a PUBLIC KEY block.
func DecodePublicKeyPEM(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != PEMTypePublicKey {
		return nil, ErrInvalidPEMEncoding
	}
	return block.Bytes, nil
}
