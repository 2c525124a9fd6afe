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
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// custodian is a capability keyed by string ids, backed by a software
// backend, that records every call it receives.
type custodian struct {
	backend *software.Backend

	mu    sync.Mutex
	keys  map[string]backend.Key
	calls []string
}

func newCustodian(t *testing.T) *custodian {
	t.Helper()
	b, err := software.NewBackend(&software.Config{KeyStorage: memory.New(), Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return &custodian{backend: b, keys: make(map[string]backend.Key)}
}

func (c *custodian) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *custodian) key(id string) (backend.Key, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.keys[id]
	if !ok {
		return nil, fmt.Errorf("custodian: unknown key %s", id)
	}
	return k, nil
}

func (c *custodian) add(k backend.Key) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[k.ID()] = k
	return k.ID()
}

func (c *custodian) Sign(ctx context.Context, key CallbackKey[string], message []byte, _ types.Algorithm) ([]byte, error) {
	c.record("sign")
	k, err := c.key(key.Value)
	if err != nil {
		return nil, err
	}
	return k.Sign(ctx, message)
}

func (c *custodian) Verify(ctx context.Context, key CallbackKey[string], _ types.Algorithm, message, signature []byte) (bool, error) {
	c.record("verify")
	k, err := c.key(key.Value)
	if err != nil {
		return false, err
	}
	return k.Verify(ctx, message, signature)
}

func (c *custodian) Generate(ctx context.Context, alg types.Algorithm) (string, error) {
	c.record("generate")
	k, err := c.backend.GenerateKey(ctx, alg)
	if err != nil {
		return "", err
	}
	return c.add(k), nil
}

func (c *custodian) ImportKey(ctx context.Context, format types.KeyFormat, data KeyData, alg types.Algorithm, _ bool, _ types.KeyUsage) (string, error) {
	c.record("import")
	r, err := rulesFor(alg.Name)
	if err != nil {
		return "", err
	}
	decoded, err := r.decode(format, data)
	if err != nil {
		return "", err
	}
	k, err := c.backend.ImportKey(ctx, decoded)
	if err != nil {
		return "", err
	}
	return c.add(k), nil
}

func (c *custodian) ExportKey(ctx context.Context, format types.KeyFormat, key CallbackKey[string]) (KeyData, error) {
	c.record("export")
	k, err := c.key(key.Value)
	if err != nil {
		return nil, err
	}
	r, err := rulesFor(k.Algorithm())
	if err != nil {
		return nil, err
	}
	if key.Attributes.Role == types.RolePrivate && format == types.FormatJWK {
		priv, err := k.Export(ctx)
		if err != nil {
			return nil, err
		}
		return r.encode(format, priv, key.Attributes)
	}
	return r.encode(format, k.Public(), key.Attributes)
}

func (c *custodian) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestNewCallbackValidation(t *testing.T) {
	_, err := NewCallback[string](types.AlgorithmECDSA, nil, newCustodian(t))
	assert.ErrorIs(t, err, ErrRegistryRequired)

	_, err = NewCallback[string](types.AlgorithmECDSA, keyhandle.NewRegistry(), nil)
	assert.ErrorIs(t, err, ErrCapabilityRequired)

	_, err = NewCallback[string](types.AlgorithmSHA1, keyhandle.NewRegistry(), newCustodian(t))
	assert.ErrorIs(t, err, types.ErrUnsupportedAlgorithm)
}

func TestCallbackSignVerify(t *testing.T) {
	ctx := context.Background()
	wallet := newCustodian(t)
	registry := keyhandle.NewRegistry()
	p, err := NewCallback[string](types.AlgorithmECDSA, registry, wallet)
	require.NoError(t, err)
	assert.Equal(t, types.AlgorithmECDSA, p.Algorithm())

	pair, err := p.Generate(ctx, types.ECDSAP256(), false, types.UsageAll)
	require.NoError(t, err)
	assert.Equal(t, types.UsageVerify, pair.Public.Usages())

	value, err := keyhandle.ResolveAs[string](registry, pair.Private)
	require.NoError(t, err)
	assert.NotEmpty(t, value)

	message := []byte("hello world!")
	sig, err := p.Sign(ctx, pair.Private, message, types.ECDSAWithSHA256())
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	ok, err := p.Verify(ctx, pair.Public, types.ECDSAWithSHA256(), message, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	sig[63] ^= 0x01
	ok, err = p.Verify(ctx, pair.Public, types.ECDSAWithSHA256(), message, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCallbackValidatesBeforeDelegating(t *testing.T) {
	ctx := context.Background()
	wallet := newCustodian(t)
	p, err := NewCallback[string](types.AlgorithmECDSA, keyhandle.NewRegistry(), wallet)
	require.NoError(t, err)

	pair, err := p.Generate(ctx, types.ECDSAP256(), false, types.UsageAll)
	require.NoError(t, err)
	before := wallet.callCount()

	_, err = p.Sign(ctx, pair.Private, []byte("m"), types.ECDSAP256().WithHash(types.HashSHA1))
	assert.ErrorIs(t, err, types.ErrInvalidAlgorithm)

	_, err = p.Verify(ctx, pair.Public, types.ECDSAP256(), []byte("m"), nil)
	assert.ErrorIs(t, err, types.ErrInvalidAlgorithm)

	_, err = p.ImportKey(ctx, types.FormatJWK, Bytes{1, 2, 3}, types.ECDSAP256(), true, types.UsageVerify)
	assert.ErrorIs(t, err, types.ErrInvalidFormat)

	_, err = p.ImportKey(ctx, types.FormatSPKI, JWK(&jwk.JWK{Kty: "EC"}), types.ECDSAP256(), true, types.UsageVerify)
	assert.ErrorIs(t, err, types.ErrInvalidFormat)

	_, err = p.ImportKey(ctx, types.FormatJWK, JWK(&jwk.JWK{Kty: "EC", Crv: "P-256"}), types.ECDSAP256(), true, types.UsageVerify)
	assert.ErrorIs(t, err, types.ErrMalformedInput)

	_, err = p.ExportKey(ctx, types.FormatJWK, pair.Private)
	assert.ErrorIs(t, err, types.ErrNotExtractable)

	_, err = p.ExportKey(ctx, "pem", pair.Public)
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)

	_, err = p.Generate(ctx, types.Algorithm{Name: types.AlgorithmECDSA, NamedCurve: "P-521"}, true, types.UsageAll)
	assert.ErrorIs(t, err, types.ErrUnsupportedAlgorithm)

	assert.Equal(t, before, wallet.callCount())
}

func TestCallbackImportExport(t *testing.T) {
	ctx := context.Background()
	wallet := newCustodian(t)
	p, err := NewCallback[string](types.AlgorithmEd25519, keyhandle.NewRegistry(), wallet)
	require.NoError(t, err)

	pair, err := p.Generate(ctx, types.Ed25519(), true, types.UsageAll)
	require.NoError(t, err)

	data, err := p.ExportKey(ctx, types.FormatJWK, pair.Private)
	require.NoError(t, err)
	require.IsType(t, JSONWebKey{}, data)
	assert.True(t, data.(JSONWebKey).IsPrivate())

	h, err := p.ImportKey(ctx, types.FormatJWK, data, types.Ed25519(), false, types.UsageAll)
	require.NoError(t, err)
	assert.Equal(t, types.RolePrivate, h.Role())
	assert.Equal(t, types.UsageSign, h.Usages())
	assert.False(t, h.Extractable())

	rawPub, err := p.ExportKey(ctx, types.FormatRaw, pair.Public)
	require.NoError(t, err)
	pub, err := p.ImportKey(ctx, types.FormatRaw, rawPub, types.Ed25519(), false, types.UsageAll)
	require.NoError(t, err)
	assert.Equal(t, types.RolePublic, pub.Role())
	assert.True(t, pub.Extractable())

	sig, err := p.Sign(ctx, h, []byte("m"), types.Ed25519())
	require.NoError(t, err)
	ok, err := p.Verify(ctx, pub, types.Ed25519(), []byte("m"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.ExportKey(ctx, types.FormatSPKI, pub)
	assert.ErrorIs(t, err, types.ErrNotImplemented)
}

type failingCapability struct {
	*custodian
	err error
}

func (f *failingCapability) Generate(context.Context, types.Algorithm) (string, error) {
	return "", f.err
}

func (f *failingCapability) ExportKey(context.Context, types.KeyFormat, CallbackKey[string]) (KeyData, error) {
	return Bytes{1}, nil
}

func TestCallbackPropagatesCapabilityErrors(t *testing.T) {
	ctx := context.Background()
	registry := keyhandle.NewRegistry()
	boom := errors.New("wallet locked")
	wallet := &failingCapability{custodian: newCustodian(t), err: boom}

	p, err := NewCallback[string](types.AlgorithmEd25519, registry, wallet)
	require.NoError(t, err)

	_, err = p.Generate(ctx, types.Ed25519(), true, types.UsageAll)
	assert.Same(t, boom, err)
	assert.Zero(t, registry.Len())

	h, err := registry.Register("external-id", keyhandle.Attributes{
		Algorithm:   types.Ed25519(),
		Role:        types.RolePublic,
		Extractable: true,
		Usages:      types.UsageVerify,
	})
	require.NoError(t, err)

	_, err = p.ExportKey(ctx, types.FormatJWK, h)
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

// policyCustodian also takes the extractable flag at generation time.
type policyCustodian struct {
	*custodian
	extractable map[string]bool
}

func (p *policyCustodian) GenerateExtractable(ctx context.Context, alg types.Algorithm, extractable bool) (string, error) {
	id, err := p.custodian.Generate(ctx, alg)
	if err != nil {
		return "", err
	}
	p.extractable[id] = extractable
	return id, nil
}

func TestCallbackGeneratePassesExtractable(t *testing.T) {
	ctx := context.Background()
	wallet := &policyCustodian{custodian: newCustodian(t), extractable: make(map[string]bool)}

	p, err := NewCallback[string](types.AlgorithmECDSA, keyhandle.NewRegistry(), wallet)
	require.NoError(t, err)

	for _, extractable := range []bool{true, false} {
		pair, err := p.Generate(ctx, types.ECDSAP256(), extractable, types.UsageAll)
		require.NoError(t, err)

		id, err := keyhandle.ResolveAs[string](p.registry, pair.Private)
		require.NoError(t, err)
		assert.Equal(t, extractable, wallet.extractable[id])
	}
}
