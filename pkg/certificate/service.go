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


// Package certificate validates, parses, builds and issues X.509
// certificates using key handles. Certificates are signed through the
// caller's Crypto, so issuing keys may live in a custodian. Signatures are
// checked by importing the issuer's public key into a verify-only
// dispatcher with its own registry and in-memory software backend; issuer
// keys never reach the caller's backend or custodian.
//
// Chains are ordered leaf first everywhere in this package.
package certificate

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/spki"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/subtle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// oidSubjectAltName is id-ce-subjectAltName.
var oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// Crypto is the part of webcrypto.Crypto the service needs.
type Crypto interface {
	Subtle() *subtle.Subtle
	RandomReader() io.Reader
}

// Data is what ParseCertificate extracts from a certificate.
type Data struct {
	Algorithm types.AlgorithmName

	// PublicKey is the raw public key: a compressed point for P-256 or
	// 32 bytes for Ed25519.
	PublicKey []byte

	DNSNames []string

	// Issuer is the first DNS name of the subject alternative name.
	Issuer string

	Certificate *x509.Certificate
}

// Service performs certificate operations with key handles.
type Service struct {
	crypto   Crypto
	verifier *verifier
	logger   *logging.Logger
}

// NewService returns a Service over crypto.
func NewService(crypto Crypto, logger *logging.Logger) (*Service, error) {
	if crypto == nil {
		return nil, ErrCryptoRequired
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	logger = logger.With("component", "certificate")
	v, err := newVerifier(logger)
	if err != nil {
		return nil, err
	}
	return &Service{crypto: crypto, verifier: v, logger: logger}, nil
}

// verifier holds issuer public keys only for the duration of one
// signature check.
type verifier struct {
	registry *keyhandle.Registry
	subtle   *subtle.Subtle
}

func newVerifier(logger *logging.Logger) (*verifier, error) {
	be, err := software.NewBackend(&software.Config{KeyStorage: memory.New(), Logger: logger})
	if err != nil {
		return nil, err
	}
	registry := keyhandle.NewRegistry()
	ec, err := provider.NewECDSA(registry, be)
	if err != nil {
		return nil, err
	}
	ed, err := provider.NewEd25519(registry, be)
	if err != nil {
		return nil, err
	}
	s, err := subtle.New(&subtle.Config{Providers: []provider.Provider{ec, ed}, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &verifier{registry: registry, subtle: s}, nil
}

// ParseCertificate decodes a PEM, base64 DER or DER certificate. The
// subject alternative name extension must be present and carry at least
// one DNS name.
func (s *Service) ParseCertificate(encoded string) (*Data, error) {
	cert, err := encoding.DecodeCertificate([]byte(encoded))
	if err != nil {
		return nil, err
	}

	hasSAN := false
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			hasSAN = true
			break
		}
	}
	if !hasSAN {
		return nil, fmt.Errorf("%w: subject alternative name", types.ErrMissingExtension)
	}
	if len(cert.DNSNames) == 0 {
		return nil, fmt.Errorf("%w: no DNS name in subject alternative name", types.ErrMissingIdentifier)
	}

	k, err := spki.Parse(cert.RawSubjectPublicKeyInfo)
	if err != nil {
		return nil, err
	}
	return &Data{
		Algorithm:   k.Algorithm,
		PublicKey:   k.Public,
		DNSNames:    append([]string(nil), cert.DNSNames...),
		Issuer:      cert.DNSNames[0],
		Certificate: cert,
	}, nil
}

// ValidateCertificateChain checks a leaf-first chain. Starting from the
// last certificate, each certificate's issuer name must equal the subject
// of the certificate after it and its signature must verify with that
// certificate's key. A self-issued last certificate must verify with its
// own key. The first failure is returned as a *ChainError.
func (s *Service) ValidateCertificateChain(ctx context.Context, chain []*x509.Certificate) (err error) {
	start := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			metrics.RecordError(metrics.OpValidateChain, "", metrics.ErrorType(err))
		}
		metrics.RecordOperation(metrics.OpValidateChain, "", status, time.Since(start).Seconds())
	}()

	if len(chain) == 0 {
		return types.ErrEmptyChain
	}
	for i, cert := range chain {
		if cert == nil {
			return &ChainError{Position: i, Err: fmt.Errorf("%w: nil certificate", types.ErrMalformedInput)}
		}
	}

	last := len(chain) - 1
	if anchor := chain[last]; isSelfIssued(anchor) {
		if err := s.checkSignature(ctx, anchor, anchor); err != nil {
			return &ChainError{Position: last, Err: err}
		}
	}
	for i := last - 1; i >= 0; i-- {
		subject, issuer := chain[i], chain[i+1]
		if !bytes.Equal(subject.RawIssuer, issuer.RawSubject) {
			return &ChainError{Position: i, Err: ErrNameMismatch}
		}
		if err := s.checkSignature(ctx, subject, issuer); err != nil {
			return &ChainError{Position: i, Err: err}
		}
	}

	s.logger.Debug("certificate chain valid", "length", len(chain), "leaf", chain[0].Subject.String())
	return nil
}

// BuildChain orders a path from leaf to a self-issued certificate using
// candidates from pool. A candidate is accepted when its subject matches
// the issuer name and its key verifies the signature.
func (s *Service) BuildChain(ctx context.Context, leaf *x509.Certificate, pool []*x509.Certificate) ([]*x509.Certificate, error) {
	if leaf == nil {
		return nil, types.ErrEmptyChain
	}

	chain := []*x509.Certificate{leaf}
	used := make(map[*x509.Certificate]bool, len(pool))
	for current := leaf; !isSelfIssued(current); {
		next, err := s.findIssuer(ctx, current, pool, used)
		if err != nil {
			return nil, err
		}
		used[next] = true
		chain = append(chain, next)
		current = next
	}
	return chain, nil
}

func (s *Service) findIssuer(ctx context.Context, cert *x509.Certificate, pool []*x509.Certificate, used map[*x509.Certificate]bool) (*x509.Certificate, error) {
	for _, candidate := range pool {
		if candidate == nil || used[candidate] || candidate.Equal(cert) {
			continue
		}
		if !bytes.Equal(cert.RawIssuer, candidate.RawSubject) {
			continue
		}
		err := s.checkSignature(ctx, cert, candidate)
		if err == nil {
			return candidate, nil
		}
		s.logger.Debug("issuer candidate rejected", "subject", candidate.Subject.String(), "error", err)
	}
	return nil, fmt.Errorf("%w: %s", types.ErrIssuerNotFound, cert.Issuer.String())
}

// checkSignature verifies cert's signature with the key of issuer.
func (s *Service) checkSignature(ctx context.Context, cert, issuer *x509.Certificate) error {
	alg, signature, err := signatureOf(cert)
	if err != nil {
		return err
	}

	k, err := spki.Parse(issuer.RawSubjectPublicKeyInfo)
	if err != nil {
		return err
	}
	if k.Algorithm != alg.Name {
		return fmt.Errorf("%w: %s signature with %s issuer key", types.ErrSignatureInvalid, alg.Name, k.Algorithm)
	}

	key, err := s.importPublic(ctx, k)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.verifier.registry.Dispose(key); err != nil {
			s.logger.Warn("failed to dispose issuer key", "error", err)
		}
	}()

	valid, err := s.verifier.subtle.Verify(ctx, alg, key, signature, cert.RawTBSCertificate)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("%w: %s", types.ErrSignatureInvalid, cert.Subject.String())
	}
	return nil
}

func (s *Service) importPublic(ctx context.Context, k encoding.Key) (keyhandle.Handle, error) {
	data, err := raw.Marshal(k)
	if err != nil {
		return keyhandle.Handle{}, err
	}
	alg := types.Ed25519()
	if k.Algorithm == types.AlgorithmECDSA {
		alg = types.ECDSAP256()
	}
	return s.verifier.subtle.ImportKey(ctx, types.FormatRaw, provider.Bytes(data), alg, true, types.UsageVerify)
}

// signatureOf returns the verification descriptor and the signature in
// the raw form the providers expect.
func signatureOf(cert *x509.Certificate) (types.Algorithm, []byte, error) {
	switch cert.SignatureAlgorithm {
	case x509.ECDSAWithSHA256:
		sig, err := encoding.ECDSASignatureToRaw(cert.Signature, 32)
		if err != nil {
			return types.Algorithm{}, nil, err
		}
		return types.ECDSAWithSHA256(), sig, nil
	case x509.PureEd25519:
		return types.Ed25519(), cert.Signature, nil
	default:
		return types.Algorithm{}, nil, fmt.Errorf("%w: signature algorithm %s", types.ErrUnsupportedAlgorithm, cert.SignatureAlgorithm)
	}
}

func isSelfIssued(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawIssuer, cert.RawSubject)
}
