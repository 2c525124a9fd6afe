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

package keyhandle

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

var registryIDs atomic.Uint64

// material is shared by every slot that references the same key.
type material struct {
	value any
	refs  int
}

type slot struct {
	generation uint32
	material   *material
}

// Registry is a generation-stamped slot table. A slot index is reused after
// disposal but its generation is bumped, so stale handles never resolve to
// the new occupant. Registry is safe for concurrent use.
type Registry struct {
	id     uint64
	mu     sync.RWMutex
	slots  []slot
	free   []uint32
	live   int
	closed bool
}

// NewRegistry returns an empty registry with a process-unique identity.
func NewRegistry() *Registry {
	return &Registry{id: registryIDs.Add(1)}
}

// Register stores material and returns a new handle for it.
func (r *Registry) Register(value any, attrs Attributes) (Handle, error) {
	if value == nil {
		return Handle{}, ErrNilMaterial
	}
	if !attrs.Role.IsValid() {
		return Handle{}, fmt.Errorf("%w: role %s", ErrInvalidAttributes, attrs.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Handle{}, ErrClosed
	}
	return r.insert(&material{value: value}, attrs), nil
}

// RegisterPair registers one piece of material under two handles. The
// public handle keeps only the verify usage; the private handle keeps the
// sign usage. The material is released when both handles are disposed.
func (r *Registry) RegisterPair(value any, alg types.Algorithm, extractable bool, usages types.KeyUsage) (KeyPair, error) {
	if value == nil {
		return KeyPair{}, ErrNilMaterial
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return KeyPair{}, ErrClosed
	}

	shared := &material{value: value}
	pub := r.insert(shared, Attributes{
		Algorithm:   alg,
		Role:        types.RolePublic,
		Extractable: true,
		Usages:      usages & types.UsageVerify,
	})
	priv := r.insert(shared, Attributes{
		Algorithm:   alg,
		Role:        types.RolePrivate,
		Extractable: extractable,
		Usages:      usages & types.UsageSign,
	})
	return KeyPair{Public: pub, Private: priv}, nil
}

// Share mints another handle over the material referenced by h.
func (r *Registry) Share(h Handle, attrs Attributes) (Handle, error) {
	if !attrs.Role.IsValid() {
		return Handle{}, fmt.Errorf("%w: role %s", ErrInvalidAttributes, attrs.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(h)
	if err != nil {
		return Handle{}, err
	}
	return r.insert(s.material, attrs), nil
}

// insert must be called with the write lock held.
func (r *Registry) insert(m *material, attrs Attributes) Handle {
	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		index = uint32(len(r.slots) - 1)
	}

	s := &r.slots[index]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.material = m
	m.refs++
	r.live++

	return Handle{
		registry:    r.id,
		slot:        index,
		generation:  s.generation,
		algorithm:   attrs.Algorithm,
		role:        attrs.Role,
		extractable: attrs.Extractable,
		usages:      attrs.Usages,
	}
}

// lookup must be called with a lock held.
func (r *Registry) lookup(h Handle) (*slot, error) {
	if h.IsZero() || h.registry != r.id || int(h.slot) >= len(r.slots) {
		return nil, fmt.Errorf("%w: %s", types.ErrKeyNotFound, h)
	}
	s := &r.slots[h.slot]
	if s.generation != h.generation || s.material == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrKeyNotFound, h)
	}
	return s, nil
}

// Resolve returns the material referenced by h. Unknown, disposed and
// foreign handles return types.ErrKeyNotFound.
func (r *Registry) Resolve(h Handle) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.material.value, nil
}

// ResolveAs resolves h and asserts the material type.
func ResolveAs[T any](r *Registry, h Handle) (T, error) {
	var zero T
	value, err := r.Resolve(h)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrMaterialType, value)
	}
	return typed, nil
}

// Dispose releases h. A handle that is not live in r is a no-op returning
// nil: disposed, stale, zero and foreign handles alike. When the last
// handle sharing the material is disposed, material implementing io.Closer
// is closed and its error returned.
func (r *Registry) Dispose(h Handle) error {
	r.mu.Lock()
	s, err := r.lookup(h)
	if err != nil {
		r.mu.Unlock()
		return nil
	}
	released := r.release(h.slot, s)
	r.mu.Unlock()

	return closeMaterial(released)
}

// release must be called with the write lock held. It returns the material
// value when no references remain.
func (r *Registry) release(index uint32, s *slot) any {
	m := s.material
	s.material = nil
	r.free = append(r.free, index)
	r.live--

	m.refs--
	if m.refs > 0 {
		return nil
	}
	return m.value
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Close disposes every live handle. Subsequent registrations fail with
// ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var released []any
	for i := range r.slots {
		s := &r.slots[i]
		if s.material == nil {
			continue
		}
		if v := r.release(uint32(i), s); v != nil {
			released = append(released, v)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, v := range released {
		if err := closeMaterial(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeMaterial(value any) error {
	if closer, ok := value.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
