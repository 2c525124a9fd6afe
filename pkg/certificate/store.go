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
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
)

// Store persists certificates and leaf-first chains as PEM in a storage
// backend.
type Store struct {
	storage storage.Backend
}

// NewStore returns a Store over backend.
func NewStore(backend storage.Backend) (*Store, error) {
	if backend == nil {
		return nil, ErrStorageRequired
	}
	return &Store{storage: backend}, nil
}

// SaveCertificate stores cert under id, replacing any previous one.
func (s *Store) SaveCertificate(id string, cert *x509.Certificate) error {
	if id == "" {
		return ErrInvalidID
	}
	data, err := encoding.EncodeCertificatePEM(cert)
	if err != nil {
		return err
	}
	if err := s.storage.Put(storage.CertPath(id), data, nil); err != nil {
		return fmt.Errorf("certificate: failed to store %s: %w", id, err)
	}
	return nil
}

// Certificate loads the certificate stored under id.
func (s *Store) Certificate(id string) (*x509.Certificate, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	data, err := s.storage.Get(storage.CertPath(id))
	if err != nil {
		return nil, fmt.Errorf("certificate: failed to load %s: %w", id, err)
	}
	return encoding.DecodeCertificate(data)
}

// SaveChain stores a leaf-first chain under id.
func (s *Store) SaveChain(id string, chain []*x509.Certificate) error {
	if id == "" {
		return ErrInvalidID
	}
	data, err := encoding.EncodeCertificatesPEM(chain)
	if err != nil {
		return err
	}
	if err := s.storage.Put(storage.ChainPath(id), data, nil); err != nil {
		return fmt.Errorf("certificate: failed to store chain %s: %w", id, err)
	}
	return nil
}

// Chain loads the chain stored under id.
func (s *Store) Chain(id string) ([]*x509.Certificate, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	data, err := s.storage.Get(storage.ChainPath(id))
	if err != nil {
		return nil, fmt.Errorf("certificate: failed to load chain %s: %w", id, err)
	}
	return encoding.DecodeCertificatesPEM(data)
}

// Delete removes the certificate and chain stored under id. Missing
// entries are ignored.
func (s *Store) Delete(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	for _, path := range []string{storage.CertPath(id), storage.ChainPath(id)} {
		if err := s.storage.Delete(path); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("certificate: failed to delete %s: %w", id, err)
		}
	}
	return nil
}

// List returns the ids of stored certificates.
func (s *Store) List() ([]string, error) {
	return storage.ListCerts(s.storage)
}

// ListChains returns the ids of stored chains.
func (s *Store) ListChains() ([]string, error) {
	return storage.ListChains(s.storage)
}
