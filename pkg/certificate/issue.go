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


package certificate

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/opaque"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// DefaultValidity is used when a template has no NotAfter.
const DefaultValidity = 365 * 24 * time.Hour

// CreateSelfSigned signs template with the private handle key. The
// template is not modified.
func (s *Service) CreateSelfSigned(ctx context.Context, key keyhandle.Handle, template *x509.Certificate) (*x509.Certificate, error) {
	signer, err := opaque.NewOpaqueKey(ctx, s.crypto.Subtle(), key)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.prepare(template)
	if err != nil {
		return nil, err
	}
	return s.create(tmpl, tmpl, signer.Public(), signer)
}

// Issue signs template for the public handle subject with the private
// handle issuerKey belonging to parent.
func (s *Service) Issue(ctx context.Context, template, parent *x509.Certificate, subject, issuerKey keyhandle.Handle) (*x509.Certificate, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: parent certificate required", types.ErrIssuerNotFound)
	}
	signer, err := opaque.NewOpaqueKey(ctx, s.crypto.Subtle(), issuerKey)
	if err != nil {
		return nil, err
	}
	pub, err := s.publicKey(ctx, subject)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.prepare(template)
	if err != nil {
		return nil, err
	}
	return s.create(tmpl, parent, pub, signer)
}

func (s *Service) create(template, parent *x509.Certificate, pub crypto.PublicKey, signer crypto.Signer) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(s.crypto.RandomReader(), template, parent, pub, signer)
	if err != nil {
		return nil, fmt.Errorf("certificate: failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("certificate: failed to parse created certificate: %w", err)
	}
	s.logger.Debug("certificate created",
		"subject", cert.Subject.String(),
		"issuer", cert.Issuer.String(),
		"serial", cert.SerialNumber.String())
	return cert, nil
}

// prepare copies template and fills the serial number and validity
// period when they are unset.
func (s *Service) prepare(template *x509.Certificate) (*x509.Certificate, error) {
	if template == nil {
		template = &x509.Certificate{}
	}
	tmpl := *template
	if tmpl.SerialNumber == nil {
		serial, err := s.serialNumber()
		if err != nil {
			return nil, err
		}
		tmpl.SerialNumber = serial
	}
	if tmpl.NotBefore.IsZero() {
		tmpl.NotBefore = time.Now().Add(-time.Minute)
	}
	if tmpl.NotAfter.IsZero() {
		tmpl.NotAfter = tmpl.NotBefore.Add(DefaultValidity)
	}
	return &tmpl, nil
}

// serialNumber returns a positive 127 bit serial from the crypto's random
// source.
func (s *Service) serialNumber() (*big.Int, error) {
	buf := make([]byte, 16)
	if _, err := s.crypto.RandomReader().Read(buf); err != nil {
		return nil, fmt.Errorf("certificate: failed to generate serial number: %w", err)
	}
	buf[0] &= 0x7f
	serial := new(big.Int).SetBytes(buf)
	if serial.Sign() == 0 {
		serial.SetInt64(1)
	}
	return serial, nil
}

// publicKey exports the public key behind h.
func (s *Service) publicKey(ctx context.Context, h keyhandle.Handle) (crypto.PublicKey, error) {
	data, err := s.crypto.Subtle().ExportKey(ctx, types.FormatRaw, h)
	if err != nil {
		return nil, err
	}
	b, ok := data.(provider.Bytes)
	if !ok {
		return nil, fmt.Errorf("%w: raw export returned %T", types.ErrInvalidFormat, data)
	}
	k, err := raw.Parse(h.Algorithm().Name, b)
	if err != nil {
		return nil, err
	}
	return k.PublicKey()
}
