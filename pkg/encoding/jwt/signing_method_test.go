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


package jwt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
	"github.com/jeremyhahn/go-webcrypto/pkg/webcrypto"
)

func newCrypto(t *testing.T) *webcrypto.Crypto {
	t.Helper()
	be, err := software.NewBackend(&software.Config{KeyStorage: memory.New(), Logger: logging.Discard()})
	require.NoError(t, err)
	c, err := webcrypto.New(be, &webcrypto.Options{Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func generate(t *testing.T, c *webcrypto.Crypto, alg types.Algorithm) keyhandle.KeyPair {
	t.Helper()
	pair, err := c.Subtle().GenerateKey(context.Background(), alg, false, types.UsageAll)
	require.NoError(t, err)
	return pair
}

func TestAlgorithmFor(t *testing.T) {
	alg, descriptor, err := AlgorithmFor(types.AlgorithmECDSA)
	require.NoError(t, err)
	assert.Equal(t, "ES256", alg)
	assert.Equal(t, types.ECDSAWithSHA256(), descriptor)

	alg, _, err = AlgorithmFor(types.AlgorithmEd25519)
	require.NoError(t, err)
	assert.Equal(t, "EdDSA", alg)

	_, _, err = AlgorithmFor(types.AlgorithmSHA1)
	assert.ErrorIs(t, err, ErrInvalidSignatureAlgorithm)
}

func TestSignParseRoundTrip(t *testing.T) {
	c := newCrypto(t)
	ctx := context.Background()

	for _, alg := range []types.Algorithm{types.ECDSAP256(), types.Ed25519()} {
		t.Run(alg.Name.String(), func(t *testing.T) {
			pair := generate(t, c, alg)
			claims := jwt.MapClaims{
				"sub": "alice",
				"exp": time.Now().Add(time.Hour).Unix(),
			}

			token, err := Sign(ctx, c.Subtle(), pair.Private, claims)
			require.NoError(t, err)
			assert.Len(t, strings.Split(token, "."), 3)

			parsed, err := Parse(ctx, c.Subtle(), token, pair.Public)
			require.NoError(t, err)
			assert.True(t, parsed.Valid)
			sub, err := parsed.Claims.GetSubject()
			require.NoError(t, err)
			assert.Equal(t, "alice", sub)

			kid, err := Thumbprint(ctx, c.Subtle(), pair.Public)
			require.NoError(t, err)
			assert.Equal(t, kid, parsed.Header["kid"])
		})
	}
}

func TestTokensVerifyWithStandardLibrary(t *testing.T) {
	c := newCrypto(t)
	ctx := context.Background()

	for _, alg := range []types.Algorithm{types.ECDSAP256(), types.Ed25519()} {
		t.Run(alg.Name.String(), func(t *testing.T) {
			pair := generate(t, c, alg)
			token, err := SignWithKID(ctx, c.Subtle(), pair.Private, jwt.MapClaims{"sub": "bob"}, "key-1")
			require.NoError(t, err)

			data, err := c.Subtle().ExportKey(ctx, types.FormatRaw, pair.Public)
			require.NoError(t, err)
			k, err := raw.Parse(alg.Name, data.(provider.Bytes))
			require.NoError(t, err)
			pub, err := k.PublicKey()
			require.NoError(t, err)

			parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
				assert.Equal(t, "key-1", tok.Header["kid"])
				return pub, nil
			})
			require.NoError(t, err)
			assert.True(t, parsed.Valid)
		})
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	c := newCrypto(t)
	ctx := context.Background()
	pair := generate(t, c, types.ECDSAP256())

	token, err := Sign(ctx, c.Subtle(), pair.Private, jwt.MapClaims{"sub": "alice"})
	require.NoError(t, err)

	other, err := Sign(ctx, c.Subtle(), pair.Private, jwt.MapClaims{"sub": "mallory"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forged := strings.Join([]string{parts[0], strings.Split(other, ".")[1], parts[2]}, ".")

	_, err = Parse(ctx, c.Subtle(), forged, pair.Public)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseRejectsOtherKey(t *testing.T) {
	c := newCrypto(t)
	ctx := context.Background()
	a := generate(t, c, types.ECDSAP256())
	b := generate(t, c, types.ECDSAP256())
	ed := generate(t, c, types.Ed25519())

	token, err := Sign(ctx, c.Subtle(), a.Private, jwt.MapClaims{"sub": "alice"})
	require.NoError(t, err)

	_, err = Parse(ctx, c.Subtle(), token, b.Public)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = Parse(ctx, c.Subtle(), token, ed.Public)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseValidatesClaims(t *testing.T) {
	c := newCrypto(t)
	ctx := context.Background()
	pair := generate(t, c, types.Ed25519())

	token, err := Sign(ctx, c.Subtle(), pair.Private, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)

	_, err = Parse(ctx, c.Subtle(), token, pair.Public)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	token, err = Sign(ctx, c.Subtle(), pair.Private, jwt.MapClaims{"sub": "alice", "iss": "other"})
	require.NoError(t, err)
	_, err = Parse(ctx, c.Subtle(), token, pair.Public, jwt.WithIssuer("webcrypto"))
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestSigningMethodRejectsForeignKeys(t *testing.T) {
	c := newCrypto(t)
	method, err := NewSigningMethod(context.Background(), c.Subtle(), types.AlgorithmECDSA)
	require.NoError(t, err)
	assert.Equal(t, "ES256", method.Alg())

	_, err = method.Sign("a.b", "not a handle")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, method.Verify("a.b", nil, 42), ErrInvalidKey)
}

func TestSignRequiresPrivateHandle(t *testing.T) {
	c := newCrypto(t)
	pair := generate(t, c, types.ECDSAP256())

	_, err := Sign(context.Background(), c.Subtle(), pair.Public, jwt.MapClaims{"sub": "alice"})
	assert.ErrorIs(t, err, types.ErrInvalidUsage)
}
