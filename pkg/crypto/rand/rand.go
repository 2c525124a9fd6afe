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


// Package rand fills caller buffers with bytes from a backend CSPRNG.
//
// Buffers are filled by requesting fixed-size blocks from a Source and
// truncating the last block to the exact length. Each block is requested
// fresh; nothing is cached between fills and no local generator is seeded.
package rand

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

// DefaultBlockSize matches the 32 byte request size of common hardware and
// key store generators.
const DefaultBlockSize = 32

var (
	// ErrInvalidBlockSize is returned for a non-positive block size.
	ErrInvalidBlockSize = errors.New("rand: invalid block size")

	// ErrShortBlock is returned when a source returns fewer bytes than requested.
	ErrShortBlock = errors.New("rand: source returned a short block")

	// ErrNilSource is returned when no source is configured.
	ErrNilSource = errors.New("rand: source is required")
)

// Source produces cryptographically strong random bytes.
type Source interface {
	Random(ctx context.Context, n int) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, n int) ([]byte, error)

func (f SourceFunc) Random(ctx context.Context, n int) ([]byte, error) {
	return f(ctx, n)
}

// Software reads from crypto/rand.
type Software struct{}

func (Software) Random(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Filler fills buffers block by block from a Source.
type Filler struct {
	source    Source
	blockSize int
}

// NewFiller returns a Filler. A zero blockSize selects DefaultBlockSize.
func NewFiller(source Source, blockSize int) (*Filler, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	return &Filler{source: source, blockSize: blockSize}, nil
}

// BlockSize returns the request size used against the source.
func (f *Filler) BlockSize() int {
	return f.blockSize
}

// Fill overwrites buf with random bytes. On error buf is left zeroed.
func (f *Filler) Fill(ctx context.Context, buf []byte) error {
	for off := 0; off < len(buf); off += f.blockSize {
		if err := ctx.Err(); err != nil {
			clear(buf)
			return err
		}
		block, err := f.source.Random(ctx, f.blockSize)
		if err != nil {
			clear(buf)
			return err
		}
		if len(block) < f.blockSize {
			clear(buf)
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortBlock, len(block), f.blockSize)
		}
		copy(buf[off:], block)
		clear(block)
	}
	return nil
}

// Read implements io.Reader so a Filler can feed crypto APIs that take a
// random source.
func (f *Filler) Read(p []byte) (int, error) {
	if err := f.Fill(context.Background(), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Fill fills buf from source using DefaultBlockSize.
func Fill(ctx context.Context, source Source, buf []byte) error {
	f, err := NewFiller(source, DefaultBlockSize)
	if err != nil {
		return err
	}
	return f.Fill(ctx, buf)
}
