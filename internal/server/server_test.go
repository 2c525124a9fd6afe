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


package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/internal/config"
	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/spki"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Custodian.Listen = "127.0.0.1:0"
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}

func newClient(t *testing.T, s *Server, token string) *custodian.Client {
	t.Helper()
	client, err := custodian.NewClient(&custodian.ClientConfig{
		BaseURL: "http://" + s.Addr(),
		Token:   token,
		Timeout: 5 * time.Second,
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Storage.Backend = "tape"
	_, err = New(cfg, logging.Discard())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Custodian.Auth = config.AuthConfig{Enabled: true, PublicKeyFile: filepath.Join(t.TempDir(), "missing.pem")}
	_, err = New(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestServeWallet(t *testing.T) {
	s := startServer(t, testConfig())
	client := newClient(t, s, "")
	ctx := context.Background()

	id, err := client.Generate(ctx, types.Ed25519())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	keys, err := client.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, keys)

	b, err := client.Random(ctx, 24)
	require.NoError(t, err)
	assert.Len(t, b, 24)

	resp, err := http.Get("http://" + s.Addr() + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartTwice(t *testing.T) {
	s := startServer(t, testConfig())
	assert.Error(t, s.Start())

	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Error(t, s.Start())
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New(testConfig(), logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.Addr() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestBearerAuthentication(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k, err := encoding.FromPublicKey(pub)
	require.NoError(t, err)
	der, err := spki.Marshal(k)
	require.NoError(t, err)
	pemData, err := encoding.EncodePublicKeyPEM(der)
	require.NoError(t, err)

	keyFile := filepath.Join(t.TempDir(), "issuer.pem")
	require.NoError(t, os.WriteFile(keyFile, pemData, 0o600))

	cfg := testConfig()
	cfg.Custodian.Auth = config.AuthConfig{Enabled: true, PublicKeyFile: keyFile, Issuer: "ops"}
	cfg.Custodian.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 600, Burst: 100}
	s := startServer(t, cfg)
	ctx := context.Background()

	_, err = newClient(t, s, "").Keys(ctx)
	var remote *custodian.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.Status)

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject:   "operator",
		Issuer:    "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(priv)
	require.NoError(t, err)

	keys, err := newClient(t, s, token).Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
