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

	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// CallbackKey is what a Capability receives in place of a handle: the
// opaque value it returned earlier and the handle's attributes.
type CallbackKey[T any] struct {
	Value      T
	Attributes keyhandle.Attributes
}

// Capability is an external key custodian. T is whatever the custodian
// uses to identify its keys; it is stored in the registry and never shown
// to callers.
type Capability[T any] interface {
	Sign(ctx context.Context, key CallbackKey[T], message []byte, alg types.Algorithm) ([]byte, error)
	Verify(ctx context.Context, key CallbackKey[T], alg types.Algorithm, message, signature []byte) (bool, error)
	Generate(ctx context.Context, alg types.Algorithm) (T, error)
	ImportKey(ctx context.Context, format types.KeyFormat, data KeyData, alg types.Algorithm, extractable bool, usages types.KeyUsage) (T, error)
	ExportKey(ctx context.Context, format types.KeyFormat, key CallbackKey[T]) (KeyData, error)
}

// ExtractableGenerator is implemented by capabilities that enforce
// extractability themselves. Callback.Generate prefers it over
// Capability.Generate so the custodian learns the caller's choice.
type ExtractableGenerator[T any] interface {
	GenerateExtractable(ctx context.Context, alg types.Algorithm, extractable bool) (T, error)
}

// Callback implements Provider by forwarding to a Capability. Requests
// are validated locally first, so the capability only sees well-formed
// calls.
type Callback[T any] struct {
	rules      *rules
	registry   *keyhandle.Registry
	capability Capability[T]
}

var _ Provider = (*Callback[string])(nil)

// NewCallback returns a callback provider for the asymmetric algorithm name.
func NewCallback[T any](name types.AlgorithmName, registry *keyhandle.Registry, capability Capability[T]) (*Callback[T], error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if capability == nil {
		return nil, ErrCapabilityRequired
	}
	r, err := rulesFor(name)
	if err != nil {
		return nil, err
	}
	return &Callback[T]{rules: r, registry: registry, capability: capability}, nil
}

func (p *Callback[T]) Algorithm() types.AlgorithmName {
	return p.rules.name
}

func (p *Callback[T]) Generate(ctx context.Context, alg types.Algorithm, extractable bool, usages types.KeyUsage) (keyhandle.KeyPair, error) {
	keyAlg, err := p.rules.keyAlgorithm(alg, false)
	if err != nil {
		return keyhandle.KeyPair{}, err
	}
	var value T
	if g, ok := p.capability.(ExtractableGenerator[T]); ok {
		value, err = g.GenerateExtractable(ctx, keyAlg, extractable)
	} else {
		value, err = p.capability.Generate(ctx, keyAlg)
	}
	if err != nil {
		return keyhandle.KeyPair{}, err
	}
	return p.registry.RegisterPair(value, keyAlg, extractable, usages)
}

func (p *Callback[T]) Sign(ctx context.Context, h keyhandle.Handle, message []byte, alg types.Algorithm) ([]byte, error) {
	if err := p.rules.checkSign(h, alg); err != nil {
		return nil, err
	}
	key, err := p.resolve(h)
	if err != nil {
		return nil, err
	}
	return p.capability.Sign(ctx, key, message, alg)
}

func (p *Callback[T]) Verify(ctx context.Context, h keyhandle.Handle, alg types.Algorithm, message, signature []byte) (bool, error) {
	if err := p.rules.checkVerify(h, alg); err != nil {
		return false, err
	}
	key, err := p.resolve(h)
	if err != nil {
		return false, err
	}
	return p.capability.Verify(ctx, key, alg, message, signature)
}

// ImportKey validates format and data locally. JWK data is decoded to
// learn its role; the original data is what the capability receives.
func (p *Callback[T]) ImportKey(ctx context.Context, format types.KeyFormat, data KeyData, alg types.Algorithm, extractable bool, usages types.KeyUsage) (keyhandle.Handle, error) {
	keyAlg, err := p.rules.checkImport(format, data, alg)
	if err != nil {
		return keyhandle.Handle{}, err
	}
	if _, err := p.rules.decode(format, data); err != nil {
		return keyhandle.Handle{}, err
	}

	attrs := importAttributes(keyAlg, jwkRole(data), extractable, usages)
	value, err := p.capability.ImportKey(ctx, format, data, keyAlg, attrs.Extractable, attrs.Usages)
	if err != nil {
		return keyhandle.Handle{}, err
	}
	return p.registry.Register(value, attrs)
}

func (p *Callback[T]) ExportKey(ctx context.Context, format types.KeyFormat, h keyhandle.Handle) (KeyData, error) {
	if err := p.rules.checkHandle(h); err != nil {
		return nil, err
	}
	if err := p.rules.checkFormat(format); err != nil {
		return nil, err
	}
	if _, err := needsPrivate(format, h); err != nil {
		return nil, err
	}
	key, err := p.resolve(h)
	if err != nil {
		return nil, err
	}

	data, err := p.capability.ExportKey(ctx, format, key)
	if err != nil {
		return nil, err
	}
	if err := checkData(format, data); err != nil {
		return nil, fmt.Errorf("capability returned bad export: %w", err)
	}
	return data, nil
}

func (p *Callback[T]) resolve(h keyhandle.Handle) (CallbackKey[T], error) {
	value, err := keyhandle.ResolveAs[T](p.registry, h)
	if err != nil {
		return CallbackKey[T]{}, err
	}
	return CallbackKey[T]{Value: value, Attributes: h.Attributes()}, nil
}
