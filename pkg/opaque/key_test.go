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


package opaque

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
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

func TestNewOpaqueKeyValidation(t *testing.T) {
	c := newCrypto(t)
	pair := generate(t, c, types.ECDSAP256())
	ctx := context.Background()

	_, err := NewOpaqueKey(ctx, nil, pair.Private)
	assert.ErrorIs(t, err, ErrSignerRequired)

	_, err = NewOpaqueKey(ctx, c.Subtle(), pair.Public)
	assert.ErrorIs(t, err, ErrPrivateKeyRequired)

	_, err = NewOpaqueKey(ctx, c.Subtle(), keyhandle.Handle{})
	assert.ErrorIs(t, err, ErrPrivateKeyRequired)

	require.NoError(t, c.Dispose(pair.Private))
	_, err = NewOpaqueKey(ctx, c.Subtle(), pair.Private)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
}

func TestECDSASigner(t *testing.T) {
	c := newCrypto(t)
	pair := generate(t, c, types.ECDSAP256())

	key, err := NewOpaqueKey(context.Background(), c.Subtle(), pair.Private)
	require.NoError(t, err)
	assert.Equal(t, pair.Private, key.Handle())

	pub, ok := key.Public().(*ecdsa.PublicKey)
	require.True(t, ok)

	digest, err := key.Digest([]byte("payload"))
	require.NoError(t, err)
	want := sha256.Sum256([]byte("payload"))
	assert.Equal(t, want[:], digest)

	sig, err := key.Sign(rand.Reader, digest, crypto.SHA256)
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(pub, digest, sig))

	_, err = key.Sign(rand.Reader, digest, crypto.SHA384)
	assert.ErrorIs(t, err, ErrInvalidHashFunction)
	_, err = key.Sign(rand.Reader, digest, nil)
	assert.ErrorIs(t, err, ErrInvalidHashFunction)
}

func TestEd25519Signer(t *testing.T) {
	c := newCrypto(t)
	pair := generate(t, c, types.Ed25519())

	key, err := NewOpaqueKey(context.Background(), c.Subtle(), pair.Private)
	require.NoError(t, err)

	pub, ok := key.Public().(ed25519.PublicKey)
	require.True(t, ok)

	message := []byte("payload")
	sig, err := key.Sign(rand.Reader, message, crypto.Hash(0))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, message, sig))

	_, err = key.Sign(rand.Reader, message, crypto.SHA256)
	assert.ErrorIs(t, err, ErrInvalidHashFunction)
}

func TestSignsCertificates(t *testing.T) {
	c := newCrypto(t)

	for _, alg := range []types.Algorithm{types.ECDSAP256(), types.Ed25519()} {
		t.Run(alg.Name.String(), func(t *testing.T) {
			pair := generate(t, c, alg)
			key, err := NewOpaqueKey(context.Background(), c.Subtle(), pair.Private)
			require.NoError(t, err)

			template := &x509.Certificate{
				SerialNumber:          big.NewInt(1),
				Subject:               pkix.Name{CommonName: "opaque"},
				NotBefore:             time.Now().Add(-time.Minute),
				NotAfter:              time.Now().Add(time.Hour),
				IsCA:                  true,
				BasicConstraintsValid: true,
				KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
			}
			der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
			require.NoError(t, err)

			cert, err := x509.ParseCertificate(der)
			require.NoError(t, err)
			assert.NoError(t, cert.CheckSignatureFrom(cert))
		})
	}
}

func TestEqual(t *testing.T) {
	c := newCrypto(t)
	a := generate(t, c, types.ECDSAP256())
	b := generate(t, c, types.ECDSAP256())
	ctx := context.Background()

	keyA, err := NewOpaqueKey(ctx, c.Subtle(), a.Private)
	require.NoError(t, err)
	keyA2, err := NewOpaqueKey(ctx, c.Subtle(), a.Private)
	require.NoError(t, err)
	keyB, err := NewOpaqueKey(ctx, c.Subtle(), b.Private)
	require.NoError(t, err)

	assert.True(t, keyA.Equal(keyA2))
	assert.False(t, keyA.Equal(keyB))
	assert.False(t, keyA.Equal("not a key"))
}
