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


// Package storage defines the blob store behind the software key store and
// the certificate store. Keys are slash separated paths such as
// "keys/<id>.p8" or "certs/<id>.pem".
package storage

import (
	"io/fs"
	"strings"
)

// Backend is a thread-safe key/value store.
type Backend interface {
	// Get returns ErrNotFound when the key does not exist.
	Get(key string) ([]byte, error)

	// Put overwrites any existing value.
	Put(key string, value []byte, opts *Options) error

	// Delete returns ErrNotFound when the key does not exist.
	Delete(key string) error

	// List returns the keys beginning with prefix in sorted order.
	List(prefix string) ([]string, error)

	Exists(key string) (bool, error)

	Close() error
}

// Options tune a single Put.
type Options struct {
	// Permissions is honored by file storage. Zero selects the default
	// for the key's prefix.
	Permissions fs.FileMode

	Metadata map[string]string
}

const (
	keyPrefix   = "keys/"
	keySuffix   = ".p8"
	certPrefix  = "certs/"
	certSuffix  = ".pem"
	chainPrefix = "chains/"
)

// KeyPath returns keys/{id}.p8.
func KeyPath(id string) string {
	return keyPrefix + id + keySuffix
}

// CertPath returns certs/{id}.pem.
func CertPath(id string) string {
	return certPrefix + id + certSuffix
}

// ChainPath returns chains/{id}.pem.
func ChainPath(id string) string {
	return chainPrefix + id + certSuffix
}

// IsKeyPath reports whether key names a stored private key.
func IsKeyPath(key string) bool {
	return strings.HasPrefix(key, keyPrefix)
}

// IsCertPath reports whether key names a certificate or a chain.
func IsCertPath(key string) bool {
	return strings.HasPrefix(key, certPrefix) || strings.HasPrefix(key, chainPrefix)
}

// ListKeys returns the ids of all stored keys.
func ListKeys(b Backend) ([]string, error) {
	return listIDs(b, keyPrefix, keySuffix)
}

// ListCerts returns the ids of all stored certificates.
func ListCerts(b Backend) ([]string, error) {
	return listIDs(b, certPrefix, certSuffix)
}

// ListChains returns the ids of all stored certificate chains.
func ListChains(b Backend) ([]string, error) {
	return listIDs(b, chainPrefix, certSuffix)
}

func listIDs(b Backend, prefix, suffix string) ([]string, error) {
	paths, err := b.List(prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		if !strings.HasSuffix(p, suffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(p, prefix), suffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
