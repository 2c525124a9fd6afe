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


package software

import (
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
)

// Config contains configuration for the software Backend.
type Config struct {
	// KeyStorage receives one PKCS#8 blob per private key.
	KeyStorage storage.Backend

	// Password encrypts the PKCS#8 blobs. Empty stores them unencrypted.
	Password []byte

	// Persistent keeps stored keys when their Key is closed. When false,
	// closing a Key deletes its blob.
	Persistent bool

	Logger *logging.Logger
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.KeyStorage == nil {
		return fmt.Errorf("KeyStorage is required")
	}
	return nil
}
