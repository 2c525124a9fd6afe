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


package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/raw"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/spki"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
	"github.com/jeremyhahn/go-webcrypto/pkg/webcrypto"
)

var (
	// ErrLocalOnly is returned by commands that need key handles when the
	// CLI talks to a remote custodian.
	ErrLocalOnly = errors.New("command requires a local key store")

	// ErrPublicImport is returned when a public key is imported into the
	// local store, which only persists private keys.
	ErrPublicImport = errors.New("only private keys can be stored locally")
)

// keyStore is where CLI keys live: a local persistent store or a remote
// custodian. Keys are addressed by id between invocations.
type keyStore interface {
	Generate(ctx context.Context, alg types.Algorithm) (string, error)
	Import(ctx context.Context, format types.KeyFormat, data provider.KeyData, alg types.Algorithm) (string, error)
	Sign(ctx context.Context, id string, data []byte) ([]byte, error)
	Verify(ctx context.Context, id string, signature, data []byte) (bool, error)
	Export(ctx context.Context, id string, format types.KeyFormat) (provider.KeyData, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Random(ctx context.Context, n int) ([]byte, error)
	Close() error
}

// keyAlgorithm returns the generation descriptor for name.
func keyAlgorithm(name types.AlgorithmName) (types.Algorithm, error) {
	switch name {
	case types.AlgorithmECDSA:
		return types.ECDSAP256(), nil
	case types.AlgorithmEd25519:
		return types.Ed25519(), nil
	default:
		return types.Algorithm{}, fmt.Errorf("%w: %q cannot be used for keys", types.ErrUnsupportedAlgorithm, name)
	}
}

// signingAlgorithm returns the descriptor used to sign with a key of name.
func signingAlgorithm(name types.AlgorithmName) (types.Algorithm, error) {
	switch name {
	case types.AlgorithmECDSA:
		return types.ECDSAWithSHA256(), nil
	case types.AlgorithmEd25519:
		return types.Ed25519(), nil
	default:
		return types.Algorithm{}, fmt.Errorf("%w: %q cannot sign", types.ErrUnsupportedAlgorithm, name)
	}
}

// localStore keeps keys in the software backend's persistent storage.
// Handles only live for the duration of one operation.
type localStore struct {
	crypto  *webcrypto.Crypto
	storage storage.Backend
}

// load registers a handle pair for id. release disposes both handles.
func (s *localStore) load(ctx context.Context, id string) (keyhandle.KeyPair, func(), error) {
	pair, err := s.crypto.LoadKey(ctx, id, false, types.UsageAll)
	if err != nil {
		return keyhandle.KeyPair{}, nil, err
	}
	release := func() {
		_ = s.crypto.Dispose(pair.Public)
		if !pair.Private.IsZero() {
			_ = s.crypto.Dispose(pair.Private)
		}
	}
	return pair, release, nil
}

func (s *localStore) Generate(ctx context.Context, alg types.Algorithm) (string, error) {
	pair, err := s.crypto.Subtle().GenerateKey(ctx, alg, false, types.UsageAll)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = s.crypto.Dispose(pair.Public)
		_ = s.crypto.Dispose(pair.Private)
	}()
	return s.crypto.KeyID(pair.Private)
}

func (s *localStore) Import(ctx context.Context, format types.KeyFormat, data provider.KeyData, alg types.Algorithm) (string, error) {
	h, err := s.crypto.Subtle().ImportKey(ctx, format, data, alg, false, types.UsageAll)
	if err != nil {
		return "", err
	}
	defer func() { _ = s.crypto.Dispose(h) }()
	if h.Role() != types.RolePrivate {
		return "", ErrPublicImport
	}
	return s.crypto.KeyID(h)
}

func (s *localStore) Sign(ctx context.Context, id string, data []byte) ([]byte, error) {
	pair, release, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()
	if pair.Private.IsZero() {
		return nil, fmt.Errorf("%w: key %s has no private part", types.ErrInvalidUsage, id)
	}
	alg, err := signingAlgorithm(pair.Private.Algorithm().Name)
	if err != nil {
		return nil, err
	}
	return s.crypto.Subtle().Sign(ctx, alg, pair.Private, data)
}

func (s *localStore) Verify(ctx context.Context, id string, signature, data []byte) (bool, error) {
	pair, release, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	defer release()
	alg, err := signingAlgorithm(pair.Public.Algorithm().Name)
	if err != nil {
		return false, err
	}
	return s.crypto.Subtle().Verify(ctx, alg, pair.Public, signature, data)
}

// Export encodes the public key. Stored keys are never exported with
// their private part.
func (s *localStore) Export(ctx context.Context, id string, format types.KeyFormat) (provider.KeyData, error) {
	pair, release, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()
	if format != types.FormatSPKI {
		return s.crypto.Subtle().ExportKey(ctx, format, pair.Public)
	}
	data, err := s.crypto.Subtle().ExportKey(ctx, types.FormatRaw, pair.Public)
	if err != nil {
		return nil, err
	}
	return rawToSPKI(pair.Public.Algorithm().Name, data)
}

// rawToSPKI wraps raw public key bytes in a SubjectPublicKeyInfo. Ed25519
// handles have no spki export of their own.
func rawToSPKI(name types.AlgorithmName, data provider.KeyData) (provider.KeyData, error) {
	b, ok := data.(provider.Bytes)
	if !ok {
		return nil, fmt.Errorf("%w: raw export returned %T", types.ErrInvalidFormat, data)
	}
	k, err := raw.Parse(name, b)
	if err != nil {
		return nil, err
	}
	der, err := spki.Marshal(k)
	if err != nil {
		return nil, err
	}
	return provider.Bytes(der), nil
}

func (s *localStore) List(ctx context.Context) ([]string, error) {
	return s.crypto.ListKeys(ctx)
}

func (s *localStore) Delete(ctx context.Context, id string) error {
	return s.crypto.DeleteKey(ctx, id)
}

func (s *localStore) Random(ctx context.Context, n int) ([]byte, error) {
	return s.crypto.GetRandomValues(ctx, make([]byte, n))
}

func (s *localStore) Close() error {
	return s.crypto.Close()
}

// remoteStore forwards to a custodian server.
type remoteStore struct {
	client *custodian.Client
}

var publicAttributes = keyhandle.Attributes{
	Role:        types.RolePublic,
	Extractable: true,
	Usages:      types.UsageVerify,
}

// algorithmOf learns the algorithm of a remote key from its public JWK.
func (s *remoteStore) algorithmOf(ctx context.Context, id string) (types.Algorithm, error) {
	data, err := s.export(ctx, id, types.FormatJWK)
	if err != nil {
		return types.Algorithm{}, err
	}
	j, ok := data.(provider.JSONWebKey)
	if !ok || j.JWK == nil {
		return types.Algorithm{}, fmt.Errorf("%w: jwk export returned %T", types.ErrInvalidFormat, data)
	}
	k, err := j.ToKey()
	if err != nil {
		return types.Algorithm{}, err
	}
	return signingAlgorithm(k.Algorithm)
}

func (s *remoteStore) Generate(ctx context.Context, alg types.Algorithm) (string, error) {
	return s.client.Generate(ctx, alg)
}

func (s *remoteStore) Import(ctx context.Context, format types.KeyFormat, data provider.KeyData, alg types.Algorithm) (string, error) {
	return s.client.ImportKey(ctx, format, data, alg, false, types.UsageAll)
}

func (s *remoteStore) Sign(ctx context.Context, id string, data []byte) ([]byte, error) {
	alg, err := s.algorithmOf(ctx, id)
	if err != nil {
		return nil, err
	}
	key := provider.CallbackKey[string]{
		Value:      id,
		Attributes: keyhandle.Attributes{Algorithm: alg, Role: types.RolePrivate, Usages: types.UsageSign},
	}
	return s.client.Sign(ctx, key, data, alg)
}

func (s *remoteStore) Verify(ctx context.Context, id string, signature, data []byte) (bool, error) {
	alg, err := s.algorithmOf(ctx, id)
	if err != nil {
		return false, err
	}
	attrs := publicAttributes
	attrs.Algorithm = alg
	return s.client.Verify(ctx, provider.CallbackKey[string]{Value: id, Attributes: attrs}, alg, data, signature)
}

func (s *remoteStore) Export(ctx context.Context, id string, format types.KeyFormat) (provider.KeyData, error) {
	if format != types.FormatSPKI {
		return s.export(ctx, id, format)
	}
	alg, err := s.algorithmOf(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.export(ctx, id, types.FormatRaw)
	if err != nil {
		return nil, err
	}
	return rawToSPKI(alg.Name, data)
}

func (s *remoteStore) export(ctx context.Context, id string, format types.KeyFormat) (provider.KeyData, error) {
	return s.client.ExportKey(ctx, format, provider.CallbackKey[string]{Value: id, Attributes: publicAttributes})
}

func (s *remoteStore) List(ctx context.Context) ([]string, error) {
	return s.client.Keys(ctx)
}

func (s *remoteStore) Delete(ctx context.Context, id string) error {
	return s.client.Delete(ctx, id)
}

func (s *remoteStore) Random(ctx context.Context, n int) ([]byte, error) {
	return s.client.Random(ctx, n)
}

func (s *remoteStore) Close() error {
	return s.client.Close()
}
