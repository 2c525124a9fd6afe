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


// Package rest serves a custodian wallet over HTTP.
//
// Routes:
//
//	GET    /health              liveness
//	GET    /health/ready        readiness (wallet random source and key storage)
//	GET    /metrics             Prometheus metrics, when enabled
//	GET    /v1/keys             list key ids
//	POST   /v1/keys             generate a key
//	POST   /v1/keys/import      import a key
//	DELETE /v1/keys/{id}        delete a key
//	POST   /v1/keys/{id}/sign   sign a message
//	POST   /v1/keys/{id}/verify verify a signature
//	POST   /v1/keys/{id}/export export public (or extractable private) key data
//	POST   /v1/random           random bytes
//
// Every /v1 route passes the authentication middleware and then the
// per-subject rate limiter.
package rest
