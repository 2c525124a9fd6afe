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


package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

func TestLoadPublicKey(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pemData, err := encoding.EncodePublicKeyPEM(der)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "issuer.pem")
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	cfg := &AuthConfig{Enabled: true, PublicKeyFile: path}
	k, err := cfg.LoadPublicKey()
	require.NoError(t, err)
	assert.Equal(t, types.AlgorithmECDSA, k.Algorithm)
	assert.False(t, k.IsPrivate())

	want, err := encoding.FromPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, want.Public, k.Public)
}

func TestLoadPublicKeyErrors(t *testing.T) {
	_, err := (&AuthConfig{}).LoadPublicKey()
	assert.Error(t, err)

	_, err = (&AuthConfig{Enabled: true, PublicKeyFile: "/nonexistent.pem"}).LoadPublicKey()
	assert.ErrorContains(t, err, "failed to read")

	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"), 0o600))
	_, err = (&AuthConfig{Enabled: true, PublicKeyFile: path}).LoadPublicKey()
	assert.True(t, errors.Is(err, encoding.ErrInvalidPEMEncoding), "got %v", err)
}
