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


package provider

import (
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// Ed25519 keys import and export as raw or jwk. SPKI is reported as not
// implemented.
var ed25519Rules = &rules{
	name:  types.AlgorithmEd25519,
	curve: types.CurveEd25519,
	formats: map[types.KeyFormat]formatSupport{
		types.FormatJWK:  formatSupported,
		types.FormatRaw:  formatSupported,
		types.FormatSPKI: formatNotImplemented,
	},
	checkParams: func(alg types.Algorithm) error {
		if alg.Name != types.AlgorithmEd25519 {
			return fmt.Errorf("%w: expected Ed25519, got %q", types.ErrInvalidAlgorithm, alg.Name)
		}
		return nil
	},
}

// Ed25519 signs messages directly, without a separate hash parameter.
type Ed25519 struct {
	local
}

var _ Provider = (*Ed25519)(nil)

func NewEd25519(registry *keyhandle.Registry, be backend.Backend) (*Ed25519, error) {
	l, err := newLocal(types.AlgorithmEd25519, registry, be)
	if err != nil {
		return nil, err
	}
	return &Ed25519{local: l}, nil
}
