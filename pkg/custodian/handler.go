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


package custodian

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/provider"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

// MaxRandomLength is the largest random request the handler serves.
const MaxRandomLength = 65536

// maxRequestSize bounds request bodies.
const maxRequestSize = 1 << 20

// ErrInvalidRequest is returned for bodies that do not decode.
var ErrInvalidRequest = errors.New("custodian: invalid request")

type handler struct {
	wallet *Wallet
	logger *logging.Logger
}

// NewHandler serves wallet over HTTP. Authentication and rate limiting
// are left to the caller's middleware.
func NewHandler(wallet *Wallet, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	h := &handler{wallet: wallet, logger: logger}

	r := chi.NewRouter()
	r.Get(PathKeys, h.list)
	r.Post(PathKeys, h.generate)
	r.Post(PathImport, h.importKey)
	r.Delete(PathKeys+"/{id}", h.delete)
	r.Post(PathKeys+"/{id}"+SuffixSign, h.sign)
	r.Post(PathKeys+"/{id}"+SuffixVerify, h.verify)
	r.Post(PathKeys+"/{id}"+SuffixExport, h.export)
	r.Post(PathRandom, h.random)
	return r
}

// StatusFor maps an error to the HTTP status a custodian reports.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, types.ErrUnsupportedAlgorithm),
		errors.Is(err, types.ErrUnsupportedFormat),
		errors.Is(err, types.ErrInvalidAlgorithm),
		errors.Is(err, types.ErrInvalidFormat),
		errors.Is(err, types.ErrMalformedInput),
		errors.Is(err, types.ErrInvalidUsage):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotExtractable):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as an ErrorResponse.
func WriteError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), ErrorResponse{Code: types.ErrorCode(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(err, "method", r.Method, "path", r.URL.Path)
	} else {
		h.logger.Debug("custodian request rejected", "path", r.URL.Path, "error", err)
	}
	WriteError(w, err)
}

func (h *handler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ListResponse{Keys: h.wallet.Keys()})
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.wallet.GenerateExtractable(r.Context(), req.Algorithm, req.Extractable)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, KeyResponse{ID: id})
}

func (h *handler) importKey(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := req.Data.KeyData()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	usages, err := types.ParseKeyUsages(req.Usages)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.wallet.ImportKey(r.Context(), req.Format, data, req.Algorithm, req.Extractable, usages)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, KeyResponse{ID: id})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.wallet.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) sign(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	key := provider.CallbackKey[string]{Value: chi.URLParam(r, "id")}
	signature, err := h.wallet.Sign(r.Context(), key, req.Message, req.Algorithm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SignResponse{Signature: signature})
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	key := provider.CallbackKey[string]{Value: chi.URLParam(r, "id")}
	valid, err := h.wallet.Verify(r.Context(), key, req.Algorithm, req.Message, req.Signature)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: valid})
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	attrs, err := req.Attributes.Attributes()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	key := provider.CallbackKey[string]{Value: chi.URLParam(r, "id"), Attributes: attrs}
	data, err := h.wallet.ExportKey(r.Context(), req.Format, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wire, err := NewKeyData(data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Data: wire})
}

func (h *handler) random(w http.ResponseWriter, r *http.Request) {
	var req RandomRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Length < 1 || req.Length > MaxRandomLength {
		h.fail(w, r, fmt.Errorf("%w: length must be between 1 and %d", ErrInvalidRequest, MaxRandomLength))
		return
	}
	b, err := h.wallet.Random(r.Context(), req.Length)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RandomResponse{Bytes: b})
}
