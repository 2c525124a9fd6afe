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
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/internal/testutil"
	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/correlation"
	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
	jwtenc "github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwt"
	"github.com/jeremyhahn/go-webcrypto/pkg/health"
	"github.com/jeremyhahn/go-webcrypto/pkg/keyhandle"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/ratelimit"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
	"github.com/jeremyhahn/go-webcrypto/pkg/webcrypto"
)

const testIssuer = "https://issuer.test"

// newCrypto returns a local Crypto over an in-memory key store.
func newCrypto(t *testing.T) (*webcrypto.Crypto, storage.Backend) {
	t.Helper()
	store := memory.New()
	be, err := software.NewBackend(&software.Config{KeyStorage: store, Logger: logging.Discard()})
	require.NoError(t, err)
	c, err := webcrypto.New(be, &webcrypto.Options{Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, store
}

type fixture struct {
	server *Server
	wallet *custodian.Wallet
	issuer *webcrypto.Crypto
	signer keyhandle.KeyPair
}

func newFixture(t *testing.T, configure func(*Config)) *fixture {
	t.Helper()

	issuer, _ := newCrypto(t)
	signer, err := issuer.Subtle().GenerateKey(context.Background(), types.ECDSAP256(), false, types.UsageAll)
	require.NoError(t, err)
	authenticator, err := NewJWTAuthenticator(&JWTConfig{
		Service: issuer.Subtle(),
		Key:     signer.Public,
		Issuer:  testIssuer,
	})
	require.NoError(t, err)

	store := memory.New()
	be, err := software.NewBackend(&software.Config{KeyStorage: store, Logger: logging.Discard()})
	require.NoError(t, err)
	wallet, err := custodian.NewWallet(&custodian.Config{Backend: be, Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = wallet.Close() })

	cfg := &Config{
		Wallet:        wallet,
		Storage:       store,
		Authenticator: authenticator,
		Logger:        logging.Discard(),
	}
	if configure != nil {
		configure(cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)

	return &fixture{server: s, wallet: wallet, issuer: issuer, signer: signer}
}

func (f *fixture) token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwtenc.Sign(context.Background(), f.issuer.Subtle(), f.signer.Private, claims)
	require.NoError(t, err)
	return token
}

func validClaims(subject string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": subject,
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func (f *fixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	_, err = NewServer(&Config{})
	assert.ErrorIs(t, err, custodian.ErrBackendRequired)
}

func TestNewServerDefaults(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Authenticator = nil })
	assert.Equal(t, DefaultAddr, f.server.Addr())
	assert.Equal(t, "noop", f.server.authenticator.Name())

	rec := f.do(t, http.MethodGet, custodian.PathKeys, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var live HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	assert.Equal(t, health.StatusHealthy, live.Status)

	rec = f.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.server.health.MarkReady(true)
	rec = f.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ready HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, health.StatusHealthy, ready.Status)
	require.Len(t, ready.Checks, 2)
	assert.Equal(t, "random", ready.Checks[0].Name)
	assert.Equal(t, "storage", ready.Checks[1].Name)

	require.NoError(t, f.wallet.Close())
	rec = f.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthenticationRequired(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, custodian.PathKeys, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	assert.NotEmpty(t, rec.Header().Get(correlation.Header))

	var body custodian.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrUnauthorized.Error(), body.Message)

	rec = f.do(t, http.MethodGet, custodian.PathKeys, f.token(t, validClaims("alice")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRejectedTokens(t *testing.T) {
	f := newFixture(t, nil)
	other := newFixture(t, nil)

	expired := validClaims("alice")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongIssuer := validClaims("alice")
	wrongIssuer["iss"] = "https://elsewhere.test"
	noSubject := validClaims("")
	noExpiry := validClaims("alice")
	delete(noExpiry, "exp")

	tests := []struct {
		name  string
		token string
	}{
		{"expired", f.token(t, expired)},
		{"wrong issuer", f.token(t, wrongIssuer)},
		{"no subject", f.token(t, noSubject)},
		{"no expiry", f.token(t, noExpiry)},
		{"other signer", other.token(t, validClaims("alice"))},
		{"malformed", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, custodian.PathKeys, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestClientThroughServer(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.server.Handler())
	t.Cleanup(srv.Close)

	client, err := custodian.NewClient(&custodian.ClientConfig{
		BaseURL: srv.URL,
		Token:   f.token(t, validClaims("alice")),
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)

	c, err := webcrypto.NewWithCapability[string](client, &webcrypto.Options{Logger: logging.Discard()})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	pair, err := c.Subtle().GenerateKey(ctx, types.Ed25519(), false, types.UsageAll)
	require.NoError(t, err)

	message := []byte("custodian message")
	signature, err := c.Subtle().Sign(ctx, types.Ed25519(), pair.Private, message)
	require.NoError(t, err)
	valid, err := c.Subtle().Verify(ctx, types.Ed25519(), pair.Public, signature, message)
	require.NoError(t, err)
	assert.True(t, valid)

	assert.Len(t, f.wallet.Keys(), 1)

	values, err := c.GetRandomValues(ctx, make([]byte, 16))
	require.NoError(t, err)
	assert.Len(t, values, 16)
}

func TestRateLimitPerSubject(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.RateLimiter = ratelimit.New(&ratelimit.Config{Enabled: true, RequestsPerMinute: 1, Burst: 2})
	})
	t.Cleanup(func() { f.server.limiter.Stop() })

	alice := f.token(t, validClaims("alice"))
	bob := f.token(t, validClaims("bob"))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, custodian.PathKeys, alice).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, custodian.PathKeys, alice).Code)
	rec := f.do(t, http.MethodGet, custodian.PathKeys, alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, custodian.PathKeys, bob).Code)

	// Health is outside the limiter.
	for range 3 {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MetricsPath = "/metrics" })
	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "webcrypto_handles_active")

	f = newFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	f := newFixture(t, nil)
	h := f.server.RecoveryMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrInternalError.Error())
}

func TestServeAndStop(t *testing.T) {
	f := newFixture(t, nil)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.server.Serve(l) }()

	url := "http://" + l.Addr().String() + "/health/ready"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Stop(ctx))
	assert.NoError(t, <-done)
}

func TestServeTLS(t *testing.T) {
	ca := testutil.NewCA(t)
	cert := ca.ServerCert(t, "localhost")

	f := newFixture(t, func(c *Config) {
		c.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert.TLSCert}, MinVersion: tls.VersionTLS12}
	})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(l) }()
	t.Cleanup(func() {
		_ = f.server.Stop(context.Background())
		<-done
	})

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: ca.Pool(), MinVersion: tls.VersionTLS12},
	}}
	url := "https://" + l.Addr().String() + "/health"

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get(url)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "healthy"))

	_, err = http.Get(url)
	assert.Error(t, err, "the server certificate is not in the system pool")
}
