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
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

func newTestBackend(t *testing.T, persistent bool) (*Backend, storage.Backend) {
	t.Helper()
	store := memory.New()
	b, err := NewBackend(&Config{
		KeyStorage: store,
		Password:   []byte("correct horse"),
		Persistent: persistent,
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, store
}

func TestNewBackendValidation(t *testing.T) {
	_, err := NewBackend(nil)
	assert.Error(t, err)

	_, err = NewBackend(&Config{})
	assert.Error(t, err)
}

func TestGenerateSignVerify(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, false)
	assert.Equal(t, types.BackendSoftware, b.Type())

	for _, alg := range []types.Algorithm{types.ECDSAP256(), types.Ed25519()} {
		t.Run(alg.Name.String(), func(t *testing.T) {
			k, err := b.GenerateKey(ctx, alg)
			require.NoError(t, err)
			defer k.Close()

			assert.NotEmpty(t, k.ID())
			assert.Equal(t, alg.Name, k.Algorithm())
			assert.True(t, k.HasPrivate())
			assert.False(t, k.Public().IsPrivate())

			msg := []byte("hello world!")
			sig, err := k.Sign(ctx, msg)
			require.NoError(t, err)
			assert.Len(t, sig, 64)

			ok, err := k.Verify(ctx, msg, sig)
			require.NoError(t, err)
			assert.True(t, ok)

			sig[0] ^= 0xff
			ok, err = k.Verify(ctx, msg, sig)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = k.Verify(ctx, msg, sig[:10])
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestGenerateUnsupported(t *testing.T) {
	b, _ := newTestBackend(t, false)

	_, err := b.GenerateKey(context.Background(), types.SHA1())
	assert.ErrorIs(t, err, types.ErrUnsupportedAlgorithm)

	_, err = b.GenerateKey(context.Background(), types.Algorithm{Name: types.AlgorithmECDSA, NamedCurve: "P-384"})
	assert.ErrorIs(t, err, types.ErrUnsupportedAlgorithm)
}

func TestKeysAreEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBackend(t, false)

	k, err := b.GenerateKey(ctx, types.ECDSAP256())
	require.NoError(t, err)

	blob, err := store.Get(storage.KeyPath(k.ID()))
	require.NoError(t, err)

	_, err = encoding.DecodePKCS8(blob, nil)
	assert.Error(t, err)
	_, err = encoding.DecodePKCS8(blob, []byte("correct horse"))
	assert.NoError(t, err)
}

func TestCloseDeletesEphemeralKey(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBackend(t, false)

	k, err := b.GenerateKey(ctx, types.Ed25519())
	require.NoError(t, err)

	require.NoError(t, k.Close())
	require.NoError(t, k.Close())

	ok, err := store.Exists(storage.KeyPath(k.ID()))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = k.Sign(ctx, []byte("m"))
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	_, err = k.Verify(ctx, []byte("m"), nil)
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
}

func TestPersistentKeys(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, true)

	k, err := b.GenerateKey(ctx, types.ECDSAP256())
	require.NoError(t, err)
	require.NoError(t, k.Close())

	ids, err := b.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{k.ID()}, ids)

	loaded, err := b.LoadKey(ctx, k.ID())
	require.NoError(t, err)
	assert.Equal(t, k.Public(), loaded.Public())

	sig, err := loaded.Sign(ctx, []byte("msg"))
	require.NoError(t, err)
	ok, err := loaded.Verify(ctx, []byte("msg"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.DeleteKey(ctx, k.ID()))
	assert.ErrorIs(t, b.DeleteKey(ctx, k.ID()), backend.ErrKeyNotFound)

	_, err = b.LoadKey(ctx, k.ID())
	assert.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func TestImportAndExport(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, false)

	src, err := b.GenerateKey(ctx, types.ECDSAP256())
	require.NoError(t, err)
	exported, err := src.Export(ctx)
	require.NoError(t, err)
	assert.True(t, exported.IsPrivate())

	imported, err := b.ImportKey(ctx, exported)
	require.NoError(t, err)
	assert.True(t, imported.HasPrivate())
	assert.NotEqual(t, src.ID(), imported.ID())

	sig, err := imported.Sign(ctx, []byte("m"))
	require.NoError(t, err)
	ok, err := src.Verify(ctx, []byte("m"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	public, err := b.ImportKey(ctx, exported.PublicOnly())
	require.NoError(t, err)
	assert.False(t, public.HasPrivate())

	_, err = public.Sign(ctx, []byte("m"))
	assert.ErrorIs(t, err, backend.ErrNoPrivateKey)
	_, err = public.Export(ctx)
	assert.ErrorIs(t, err, backend.ErrNoPrivateKey)

	ok, err = public.Verify(ctx, []byte("m"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = b.ImportKey(ctx, encoding.Key{Algorithm: types.AlgorithmECDSA, Curve: types.CurveP256, Public: []byte{1}})
	assert.ErrorIs(t, err, types.ErrMalformedInput)
}

func TestSignDigest(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, false)

	k, err := b.GenerateKey(ctx, types.ECDSAP256())
	require.NoError(t, err)
	signer := k.(backend.DigestSigner)

	msg := []byte("prehashed")
	digest := sha256.Sum256(msg)
	sig, err := signer.SignDigest(ctx, digest[:])
	require.NoError(t, err)

	ok, err := k.Verify(ctx, msg, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = signer.SignDigest(ctx, digest[:16])
	assert.ErrorIs(t, err, backend.ErrInvalidDigest)

	ed, err := b.GenerateKey(ctx, types.Ed25519())
	require.NoError(t, err)
	_, err = ed.(backend.DigestSigner).SignDigest(ctx, digest[:])
	assert.ErrorIs(t, err, types.ErrInvalidAlgorithm)
}

func TestWrongPassword(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	writer, err := NewBackend(&Config{KeyStorage: store, Password: []byte("a"), Persistent: true, Logger: logging.Discard()})
	require.NoError(t, err)
	k, err := writer.GenerateKey(ctx, types.ECDSAP256())
	require.NoError(t, err)

	reader, err := NewBackend(&Config{KeyStorage: store, Password: []byte("b"), Logger: logging.Discard()})
	require.NoError(t, err)
	_, err = reader.LoadKey(ctx, k.ID())
	assert.True(t, errors.Is(err, encoding.ErrInvalidPassword), "got %v", err)
}

func TestRandom(t *testing.T) {
	b, _ := newTestBackend(t, false)

	a, err := b.Random(context.Background(), 32)
	require.NoError(t, err)
	c, err := b.Random(context.Background(), 32)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, c)

	_, err = b.Random(context.Background(), -1)
	assert.Error(t, err)
}

func TestClosedBackend(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, false)

	k, err := b.GenerateKey(ctx, types.ECDSAP256())
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = b.GenerateKey(ctx, types.ECDSAP256())
	assert.ErrorIs(t, err, backend.ErrClosed)
	_, err = k.Sign(ctx, []byte("m"))
	assert.ErrorIs(t, err, backend.ErrClosed)
	assert.NoError(t, k.Close())
}

func TestCanceledContext(t *testing.T) {
	b, _ := newTestBackend(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.GenerateKey(ctx, types.ECDSAP256())
	assert.ErrorIs(t, err, context.Canceled)
}
