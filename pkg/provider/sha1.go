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
	"context"
	"crypto/sha1" //nolint:gosec
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// SHA1 is the only digest provider.
type SHA1 struct{}

var _ DigestProvider = SHA1{}

func NewSHA1() SHA1 {
	return SHA1{}
}

func (SHA1) Algorithm() types.AlgorithmName {
	return types.AlgorithmSHA1
}

// Digest returns the 20 byte SHA-1 of data.
func (SHA1) Digest(ctx context.Context, alg types.Algorithm, data []byte) ([]byte, error) {
	if alg.Name != types.AlgorithmSHA1 {
		return nil, fmt.Errorf("%w: digest %q", types.ErrUnsupportedAlgorithm, alg.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := sha1.Sum(data) //nolint:gosec
	return sum[:], nil
}
