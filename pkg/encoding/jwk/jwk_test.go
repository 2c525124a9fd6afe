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

package jwk

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

func ecdsaKey(t *testing.T) encoding.Key {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	k, err := encoding.FromPrivateKey(priv)
	require.NoError(t, err)
	return k
}

func ed25519Key(t *testing.T) encoding.Key {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k, err := encoding.FromPrivateKey(priv)
	require.NoError(t, err)
	return k
}

func TestECDSARoundTrip(t *testing.T) {
	k := ecdsaKey(t)

	public, err := FromKey(k, false)
	require.NoError(t, err)
	assert.Equal(t, "EC", public.Kty)
	assert.Equal(t, "P-256", public.Crv)
	assert.NotEmpty(t, public.X)
	assert.NotEmpty(t, public.Y)
	assert.Empty(t, public.D)
	assert.False(t, public.IsPrivate())
	assert.Equal(t, types.RolePublic, public.Role())

	decoded, err := public.ToKey()
	require.NoError(t, err)
	assert.Equal(t, k.Public, decoded.Public)
	assert.False(t, decoded.IsPrivate())

	private, err := FromKey(k, true)
	require.NoError(t, err)
	assert.True(t, private.IsPrivate())
	assert.Equal(t, types.RolePrivate, private.Role())

	decoded, err = private.ToKey()
	require.NoError(t, err)
	assert.Equal(t, k.Private, decoded.Private)
}

func TestEd25519RoundTrip(t *testing.T) {
	k := ed25519Key(t)

	private, err := FromKey(k, true)
	require.NoError(t, err)
	assert.Equal(t, "OKP", private.Kty)
	assert.Equal(t, "Ed25519", private.Crv)
	assert.Empty(t, private.Y)

	decoded, err := private.ToKey()
	require.NoError(t, err)
	assert.Equal(t, k, decoded)

	public := private.Public()
	assert.Empty(t, public.D)
	assert.NotEmpty(t, private.D, "Public must not modify the receiver")
}

func TestMarshalUnmarshal(t *testing.T) {
	jwk, err := FromKey(ecdsaKey(t), true)
	require.NoError(t, err)
	ext := true
	jwk.Ext = &ext
	jwk.KeyOps = []string{"sign"}

	data, err := jwk.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kty":"EC"`)
	assert.Contains(t, string(data), `"ext":true`)

	parsed, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, jwk, parsed)

	indented, err := jwk.MarshalIndent("", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n")

	_, err = Unmarshal([]byte("{"))
	assert.True(t, errors.Is(err, types.ErrMalformedInput))
}

func TestToKeyErrors(t *testing.T) {
	valid, err := FromKey(ecdsaKey(t), true)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(j *JWK)
		field  string
		target error
	}{
		{"missing kty", func(j *JWK) { j.Kty = "" }, "kty", types.ErrMalformedInput},
		{"unsupported kty", func(j *JWK) { j.Kty = "RSA" }, "", types.ErrUnsupportedAlgorithm},
		{"missing crv", func(j *JWK) { j.Crv = "" }, "crv", types.ErrMalformedInput},
		{"unsupported crv", func(j *JWK) { j.Crv = "P-384" }, "", types.ErrUnsupportedAlgorithm},
		{"missing x", func(j *JWK) { j.X = "" }, "x", types.ErrMalformedInput},
		{"bad base64 y", func(j *JWK) { j.Y = "***" }, "y", types.ErrMalformedInput},
		{"short x", func(j *JWK) { j.X = "AAAA" }, "x", types.ErrMalformedInput},
		{"off curve", func(j *JWK) { j.Y = j.X }, "x", types.ErrMalformedInput},
		{"short d", func(j *JWK) { j.D = "AAAA" }, "d", types.ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := *valid
			tt.mutate(&j)

			_, err := j.ToKey()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)

			if tt.field != "" {
				var malformed *encoding.MalformedInputError
				require.True(t, errors.As(err, &malformed))
				assert.Equal(t, tt.field, malformed.Field)
			}
		})
	}
}

func TestToKeyRejectsMismatchedPrivate(t *testing.T) {
	a, err := FromKey(ecdsaKey(t), true)
	require.NoError(t, err)
	b, err := FromKey(ecdsaKey(t), true)
	require.NoError(t, err)

	a.D = b.D
	_, err = a.ToKey()
	assert.True(t, errors.Is(err, types.ErrMalformedInput))

	e1, err := FromKey(ed25519Key(t), true)
	require.NoError(t, err)
	e2, err := FromKey(ed25519Key(t), true)
	require.NoError(t, err)

	e1.D = e2.D
	_, err = e1.ToKey()
	assert.True(t, errors.Is(err, types.ErrMalformedInput))
}

// RFC 7638 section 3.1 uses an RSA key; this fixed EC vector comes from
// RFC 7517 appendix A.1.
func TestThumbprintKnownVector(t *testing.T) {
	jwk := &JWK{
		Kty: "EC",
		Crv: "P-256",
		X:   "MKBCTNIcKUSDii11ySs3526iDZ8AiTo7Tu6KPAqv7D4",
		Y:   "4Etl6SRW2YiLUrN5vfvVHuhp7x8PxltmWWlbbM4IFyM",
	}

	tp1, err := jwk.ThumbprintSHA256()
	require.NoError(t, err)
	assert.Len(t, tp1, 43)

	withKid, err := jwk.WithKid()
	require.NoError(t, err)
	assert.Equal(t, tp1, withKid.Kid)
	assert.Empty(t, jwk.Kid)
}

func TestThumbprintIgnoresPrivatePart(t *testing.T) {
	k := ecdsaKey(t)
	public, err := FromKey(k, false)
	require.NoError(t, err)
	private, err := FromKey(k, true)
	require.NoError(t, err)

	tp1, err := public.ThumbprintSHA256()
	require.NoError(t, err)
	tp2, err := private.ThumbprintSHA256()
	require.NoError(t, err)
	assert.Equal(t, tp1, tp2)

	other, err := FromKey(ed25519Key(t), false)
	require.NoError(t, err)
	tp3, err := other.ThumbprintSHA256()
	require.NoError(t, err)
	assert.NotEqual(t, tp1, tp3)
}

func TestFromKeyRejectsInvalid(t *testing.T) {
	_, err := FromKey(encoding.Key{Algorithm: types.AlgorithmSHA1}, false)
	assert.True(t, errors.Is(err, types.ErrUnsupportedAlgorithm))
}
