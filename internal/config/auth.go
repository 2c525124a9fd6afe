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
	"fmt"
	"os"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/spki"
)

// LoadPublicKey reads the PEM SubjectPublicKeyInfo that verifies bearer
// tokens.
func (cfg *AuthConfig) LoadPublicKey() (encoding.Key, error) {
	if !cfg.Enabled {
		return encoding.Key{}, fmt.Errorf("auth is not enabled")
	}
	// #nosec G304 - key path from trusted config
	data, err := os.ReadFile(cfg.PublicKeyFile)
	if err != nil {
		return encoding.Key{}, fmt.Errorf("failed to read auth public key: %w", err)
	}
	der, err := encoding.DecodePublicKeyPEM(data)
	if err != nil {
		return encoding.Key{}, fmt.Errorf("failed to decode auth public key %s: %w", cfg.PublicKeyFile, err)
	}
	return spki.Parse(der)
}
