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


// Package correlation carries a request id from a custodian client to the
// server handling the call, so both sides log the same id.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{}

// Header carries the correlation id on custodian requests and responses.
const Header = "X-Correlation-ID"

// WithID returns ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ID returns the correlation id in ctx, or "".
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// NewID returns a random UUID.
func NewID() string {
	return uuid.NewString()
}

// GetOrGenerate returns the id in ctx, or a new one when there is none.
func GetOrGenerate(ctx context.Context) string {
	if id := ID(ctx); id != "" {
		return id
	}
	return NewID()
}

// SetHeader copies the id from the request context onto the request,
// generating one if needed.
func SetHeader(req *http.Request) {
	req.Header.Set(Header, GetOrGenerate(req.Context()))
}

// Middleware accepts an incoming id or assigns one, stores it in the
// request context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if _, err := uuid.Parse(id); err != nil {
			id = NewID()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}
