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

package raw

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

func TestP256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	k, err := encoding.FromPrivateKey(priv)
	require.NoError(t, err)

	data, err := Marshal(k)
	require.NoError(t, err)
	assert.Len(t, data, 33)
	assert.Contains(t, []byte{0x02, 0x03}, data[0])

	parsed, err := Parse(types.AlgorithmECDSA, data)
	require.NoError(t, err)
	assert.Equal(t, k.PublicOnly(), parsed)

	uncompressed := elliptic.Marshal(elliptic.P256(), priv.X, priv.Y) //nolint:staticcheck
	parsed, err = Parse(types.AlgorithmECDSA, uncompressed)
	require.NoError(t, err)
	assert.Equal(t, data, parsed.Public)
}

func TestEd25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	parsed, err := Parse(types.AlgorithmEd25519, pub)
	require.NoError(t, err)

	data, err := Marshal(parsed)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), data)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		alg    types.AlgorithmName
		data   []byte
		target error
	}{
		{"p256 bad length", types.AlgorithmECDSA, make([]byte, 10), types.ErrMalformedInput},
		{"p256 bad compressed", types.AlgorithmECDSA, make([]byte, 33), types.ErrMalformedInput},
		{"p256 bad uncompressed", types.AlgorithmECDSA, append([]byte{0x04}, make([]byte, 64)...), types.ErrMalformedInput},
		{"ed25519 bad length", types.AlgorithmEd25519, make([]byte, 33), types.ErrMalformedInput},
		{"digest", types.AlgorithmSHA1, make([]byte, 20), types.ErrUnsupportedAlgorithm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.alg, tt.data)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}
