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
	"fmt"

	"github.com/jeremyhahn/go-webcrypto/pkg/backend"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// local implements Provider over a backend.Backend for one algorithm.
type local struct {
	rules    *rules
	registry *keyhandle.Registry
	backend  backend.Backend
}

func newLocal(name types.AlgorithmName, registry *keyhandle.Registry, be backend.Backend) (local, error) {
	if registry == nil {
		return local{}, ErrRegistryRequired
	}
	if be == nil {
		return local{}, ErrBackendRequired
	}
	r, err := rulesFor(name)
	if err != nil {
		return local{}, err
	}
	return local{rules: r, registry: registry, backend: be}, nil
}

func (p *local) Algorithm() types.AlgorithmName {
	return p.rules.name
}

// Generate creates one backend key and registers it twice, once public
// and once private. Nothing is registered when the backend fails.
func (p *local) Generate(ctx context.Context, alg types.Algorithm, extractable bool, usages types.KeyUsage) (keyhandle.KeyPair, error) {
	keyAlg, err := p.rules.keyAlgorithm(alg, false)
	if err != nil {
		return keyhandle.KeyPair{}, err
	}
	key, err := p.backend.GenerateKey(ctx, keyAlg)
	if err != nil {
		return keyhandle.KeyPair{}, err
	}
	pair, err := p.registry.RegisterPair(key, keyAlg, extractable, usages)
	if err != nil {
		_ = key.Close()
		return keyhandle.KeyPair{}, err
	}
	return pair, nil
}

func (p *local) Sign(ctx context.Context, h keyhandle.Handle, message []byte, alg types.Algorithm) ([]byte, error) {
	if err := p.rules.checkSign(h, alg); err != nil {
		return nil, err
	}
	key, err := p.resolve(h)
	if err != nil {
		return nil, err
	}
	return key.Sign(ctx, message)
}

func (p *local) Verify(ctx context.Context, h keyhandle.Handle, alg types.Algorithm, message, signature []byte) (bool, error) {
	if err := p.rules.checkVerify(h, alg); err != nil {
		return false, err
	}
	key, err := p.resolve(h)
	if err != nil {
		return false, err
	}
	return key.Verify(ctx, message, signature)
}

func (p *local) ImportKey(ctx context.Context, format types.KeyFormat, data KeyData, alg types.Algorithm, extractable bool, usages types.KeyUsage) (keyhandle.Handle, error) {
	keyAlg, err := p.rules.checkImport(format, data, alg)
	if err != nil {
		return keyhandle.Handle{}, err
	}
	k, err := p.rules.decode(format, data)
	if err != nil {
		return keyhandle.Handle{}, err
	}

	role := types.RolePublic
	if k.IsPrivate() {
		role = types.RolePrivate
	}
	key, err := p.backend.ImportKey(ctx, k)
	if err != nil {
		return keyhandle.Handle{}, err
	}
	h, err := p.registry.Register(key, importAttributes(keyAlg, role, extractable, usages))
	if err != nil {
		_ = key.Close()
		return keyhandle.Handle{}, err
	}
	return h, nil
}

func (p *local) ExportKey(ctx context.Context, format types.KeyFormat, h keyhandle.Handle) (KeyData, error) {
	if err := p.rules.checkHandle(h); err != nil {
		return nil, err
	}
	if err := p.rules.checkFormat(format); err != nil {
		return nil, err
	}
	withPrivate, err := needsPrivate(format, h)
	if err != nil {
		return nil, err
	}
	key, err := p.resolve(h)
	if err != nil {
		return nil, err
	}

	var k encoding.Key
	if withPrivate {
		if k, err = key.Export(ctx); err != nil {
			return nil, err
		}
	} else {
		k = key.Public()
	}
	return p.rules.encode(format, k, h.Attributes())
}

func (p *local) resolve(h keyhandle.Handle) (backend.Key, error) {
	key, err := keyhandle.ResolveAs[backend.Key](p.registry, h)
	if err != nil {
		return nil, err
	}
	if key.Algorithm() != p.rules.name {
		return nil, fmt.Errorf("%w: %s material behind %s handle", types.ErrInvalidAlgorithm, key.Algorithm(), p.rules.name)
	}
	return key, nil
}
