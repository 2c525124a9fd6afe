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

	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/file"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
)

// Open returns the storage backend selected by the section.
func (cfg StorageConfig) Open() (storage.Backend, error) {
	switch cfg.Backend {
	case StorageMemory, "":
		return memory.New(), nil
	case StorageFile:
		return file.New(cfg.Path)
	default:
		return nil, fmt.Errorf("invalid storage backend: %q", cfg.Backend)
	}
}
