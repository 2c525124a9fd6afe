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


package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-webcrypto/pkg/correlation"
	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternalError = errors.New("internal server error")
)

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, custodian.ErrorResponse{Message: err.Error()})
}

// LoggingMiddleware logs each request with its correlation id.
func (s *Server) LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start).String(),
				"correlation_id", correlation.ID(r.Context()),
			}
			if wrapped.statusCode >= http.StatusInternalServerError {
				s.logger.Warn("request failed", args...)
				return
			}
			s.logger.Debug("request completed", args...)
		})
	}
}

// RecoveryMiddleware turns a panic into a 500 response.
func (s *Server) RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					s.logger.Warn("panic recovered",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec)
					writeError(w, http.StatusInternalServerError, ErrInternalError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AuthenticationMiddleware rejects requests the authenticator refuses and
// stores the identity of the rest.
func (s *Server) AuthenticationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := s.authenticator.AuthenticateHTTP(r)
			if err != nil {
				s.logger.Debug("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err.Error())
				w.Header().Set("WWW-Authenticate", `Bearer realm="custodian"`)
				writeError(w, http.StatusUnauthorized, ErrUnauthorized)
				return
			}
			s.logger.Debug("request authenticated", "path", r.URL.Path, "subject", identity.Subject)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
