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
	"net/http"

	"github.com/jeremyhahn/go-webcrypto/pkg/health"
)

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status  health.Status        `json:"status"`
	Message string               `json:"message,omitempty"`
	Checks  []health.CheckResult `json:"checks,omitempty"`
}

func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	result := s.health.Live(r.Context())
	writeJSON(w, http.StatusOK, HealthResponse{Status: result.Status, Message: result.Message})
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	results := s.health.Ready(r.Context())
	status := health.AggregateStatus(results)
	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: status, Checks: results})
}
