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


package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

var tlsVersions = map[string]uint16{
	"TLS1.2": tls.VersionTLS12,
	"TLS1.3": tls.VersionTLS13,
}

var clientAuthTypes = map[string]tls.ClientAuthType{
	"":                   tls.NoClientCert,
	"none":               tls.NoClientCert,
	"request":            tls.RequestClientCert,
	"require":            tls.RequireAnyClientCert,
	"verify":             tls.VerifyClientCertIfGiven,
	"require_and_verify": tls.RequireAndVerifyClientCert,
}

// Only AEAD suites with forward secrecy are accepted. TLS 1.3 suites are
// not configurable in crypto/tls.
var cipherSuites = map[string]uint16{
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// LoadTLSConfig builds the custodian server's tls.Config. It returns nil
// when TLS is disabled.
func (cfg *TLSConfig) LoadTLSConfig() (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	minVersion, err := parseTLSVersion(cfg.MinVersion, tls.VersionTLS12)
	if err != nil {
		return nil, err
	}
	// #nosec G402 - MinVersion defaults to TLS 1.2 and older versions are rejected
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}
	if cfg.MaxVersion != "" {
		if tlsConfig.MaxVersion, err = parseTLSVersion(cfg.MaxVersion, 0); err != nil {
			return nil, err
		}
		if tlsConfig.MaxVersion < tlsConfig.MinVersion {
			return nil, fmt.Errorf("max_version %s is below min_version", cfg.MaxVersion)
		}
	}

	if len(cfg.CipherSuites) > 0 {
		suites, err := parseCipherSuites(cfg.CipherSuites)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cipher suites: %w", err)
		}
		tlsConfig.CipherSuites = suites
	}

	clientAuth, ok := clientAuthTypes[cfg.ClientAuth]
	if !ok {
		return nil, fmt.Errorf("invalid client_auth value: %q", cfg.ClientAuth)
	}
	tlsConfig.ClientAuth = clientAuth
	if clientAuth != tls.NoClientCert && (cfg.CAFile != "" || len(cfg.ClientCAs) > 0) {
		pool, err := loadCertPool(append([]string{cfg.CAFile}, cfg.ClientCAs...))
		if err != nil {
			return nil, fmt.Errorf("failed to load client CA certificates: %w", err)
		}
		tlsConfig.ClientCAs = pool
	}

	return tlsConfig, nil
}

func parseTLSVersion(version string, fallback uint16) (uint16, error) {
	if version == "" {
		return fallback, nil
	}
	v, ok := tlsVersions[version]
	if !ok {
		return 0, fmt.Errorf("unsupported TLS version: %q (must be TLS1.2 or TLS1.3)", version)
	}
	return v, nil
}

func parseCipherSuites(names []string) ([]uint16, error) {
	result := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := cipherSuites[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite: %s", name)
		}
		result = append(result, id)
	}
	return result, nil
}

// loadCertPool loads every non-empty path into one pool
func loadCertPool(paths []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, path := range paths {
		if path == "" {
			continue
		}
		// #nosec G304 - CA file paths from trusted config
		pemData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", path)
		}
	}
	return pool, nil
}
