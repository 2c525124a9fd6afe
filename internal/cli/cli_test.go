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


package cli

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/internal/rest"
	"github.com/jeremyhahn/go-webcrypto/pkg/backend/software"
	"github.com/jeremyhahn/go-webcrypto/pkg/custodian"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-webcrypto/pkg/encoding/spki"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
	"github.com/jeremyhahn/go-webcrypto/pkg/storage/memory"
	"github.com/jeremyhahn/go-webcrypto/pkg/webcrypto"
)

// cliEnv runs commands against one home directory, like repeated
// invocations of the binary.
type cliEnv struct {
	t     *testing.T
	home  string
	extra []string
}

func newEnv(t *testing.T, extra ...string) *cliEnv {
	return &cliEnv{t: t, home: t.TempDir(), extra: extra}
}

func (e *cliEnv) runWithInput(stdin string, args ...string) (string, error) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	c, err := newCommand(
		WithArgs(append(args, e.extra...)...),
		WithOutput(&out),
		WithErrorOutput(&errOut),
		WithInput(strings.NewReader(stdin)),
		WithHomeDir(e.home),
	)
	require.NoError(e.t, err)
	err = c.Execute()
	return out.String(), err
}

func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return e.runWithInput("", args...)
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "webcrypto %s", strings.Join(args, " "))
	return strings.TrimSpace(out)
}

func (e *cliEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.t.TempDir(), name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	assert.Contains(t, e.mustRun("version"), "webcrypto version "+Version)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("version", "-o", "json")), &info))
	assert.Equal(t, Version, info["version"])

	_, err := e.run("version", "-o", "yaml")
	assert.Error(t, err)
}

func TestKeyLifecycle(t *testing.T) {
	for _, alg := range []string{"ECDSA", "Ed25519"} {
		t.Run(alg, func(t *testing.T) {
			e := newEnv(t)
			id := e.mustRun("key", "generate", "-a", alg)
			require.NotEmpty(t, id)
			assert.Equal(t, id, e.mustRun("key", "list"))

			signature := e.mustRun("key", "sign", id, "--data", "hello")
			raw, err := base64.StdEncoding.DecodeString(signature)
			require.NoError(t, err)
			assert.Len(t, raw, 64)

			assert.Equal(t, "Signature valid", e.mustRun("key", "verify", id, "-s", signature, "--data", "hello"))

			out, err := e.run("key", "verify", id, "-s", signature, "--data", "goodbye")
			assert.ErrorIs(t, err, ErrVerificationFailed)
			assert.Contains(t, out, "Signature invalid")

			assert.Contains(t, e.mustRun("key", "export", id), "-----BEGIN PUBLIC KEY-----")

			var exported struct {
				Format string  `json:"format"`
				Key    jwk.JWK `json:"key"`
			}
			require.NoError(t, json.Unmarshal([]byte(e.mustRun("key", "export", id, "-f", "jwk", "-o", "json")), &exported))
			assert.Equal(t, "jwk", exported.Format)
			assert.Empty(t, exported.Key.D)

			e.mustRun("key", "delete", id)
			assert.Equal(t, "No keys found", e.mustRun("key", "list"))

			_, err = e.run("key", "sign", id, "--data", "hello")
			assert.Error(t, err)
		})
	}
}

func TestKeyGenerateRejectsDigest(t *testing.T) {
	_, err := newEnv(t).run("key", "generate", "-a", "SHA-1")
	assert.Error(t, err)
}

func TestKeyPassword(t *testing.T) {
	e := newEnv(t)
	id := e.mustRun("key", "generate", "--password", "correct horse")
	e.mustRun("key", "sign", id, "--data", "x", "--password", "correct horse")

	_, err := e.run("key", "sign", id, "--data", "x", "--password", "wrong")
	assert.Error(t, err)
}

func TestKeyImport(t *testing.T) {
	e := newEnv(t)

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	k, err := encoding.FromPrivateKey(priv)
	require.NoError(t, err)
	private, err := jwk.FromKey(k, true)
	require.NoError(t, err)
	data, err := private.Marshal()
	require.NoError(t, err)

	out, err := e.runWithInput(string(data), "key", "import", "--in", "-")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	exported := e.mustRun("key", "export", id, "-f", "raw")
	assert.Equal(t, base64.StdEncoding.EncodeToString(k.Public), exported)

	pemFile := e.writeFile("public.pem", e.mustRun("key", "export", id))
	_, err = e.run("key", "import", "-f", "spki", "--in", pemFile)
	assert.ErrorIs(t, err, ErrPublicImport)

	_, err = e.run("key", "import", "-f", "raw", "--data", base64.StdEncoding.EncodeToString(k.Public))
	assert.Error(t, err, "raw import needs --algorithm")
}

func TestDigest(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", e.mustRun("digest", "--data", "abc"))

	out, err := e.runWithInput("abc", "digest", "--base64")
	require.NoError(t, err)
	assert.Equal(t, "qZk+NkcGgWq6PiVxeFDCbJzQ2J0=", strings.TrimSpace(out))

	_, err = e.run("digest", "-a", "ECDSA", "--data", "abc")
	assert.Error(t, err)
}

func TestRandom(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("random", "-n", "16")
	b, err := hex.DecodeString(out)
	require.NoError(t, err)
	assert.Len(t, b, 16)

	_, err = e.run("random", "-n", "70000")
	assert.ErrorIs(t, err, webcrypto.ErrQuotaExceeded)
}

func TestToken(t *testing.T) {
	e := newEnv(t)
	id := e.mustRun("key", "generate", "-a", "Ed25519")
	signed := e.mustRun("token", "--key", id, "--subject", "alice", "--issuer", "ops", "--audience", "custodian")

	der, err := encoding.DecodePublicKeyPEM([]byte(e.mustRun("key", "export", id)))
	require.NoError(t, err)
	k, err := spki.Parse(der)
	require.NoError(t, err)
	pub, err := k.PublicKey()
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer("ops"),
		jwt.WithAudience("custodian"),
		jwt.WithExpirationRequired(),
	)
	require.NoError(t, err)
	sub, err := token.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
	assert.NotEmpty(t, token.Header["kid"])

	_, err = e.run("token", "--key", id)
	assert.Error(t, err)
	_, err = e.run("token", "--key", id, "--subject", "alice", "--ttl=-1h")
	assert.Error(t, err)
}

func TestCertificates(t *testing.T) {
	e := newEnv(t)
	caKey := e.mustRun("key", "generate")
	leafKey := e.mustRun("key", "generate", "-a", "Ed25519")

	caPEM := e.mustRun("cert", "selfsign", "--key", caKey, "--dns", "ca.example.com", "--ca", "--save", "ca")
	caFile := e.writeFile("ca.pem", caPEM)

	leafPEM := e.mustRun("cert", "issue", caFile, "--key", leafKey, "--issuer-key", caKey, "--dns", "leaf.example.com,www.example.com")
	leafFile := e.writeFile("leaf.pem", leafPEM)

	parsed := e.mustRun("cert", "parse", leafFile)
	assert.Contains(t, parsed, "Issuer:     leaf.example.com")
	assert.Contains(t, parsed, "Algorithm:  Ed25519")

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.mustRun("cert", "parse", caFile, "-o", "json")), &data))
	assert.Equal(t, "ECDSA", data["algorithm"])

	chain := e.mustRun("cert", "build", "--leaf", leafFile, "--pool", caFile)
	certs, err := encoding.DecodeCertificatesPEM([]byte(chain))
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "leaf.example.com", certs[0].Subject.CommonName)

	chainFile := e.writeFile("chain.pem", chain)
	assert.Contains(t, e.mustRun("cert", "validate", chainFile), "valid")

	reversed := e.writeFile("reversed.pem", caPEM+"\n"+leafPEM)
	_, err = e.run("cert", "validate", reversed)
	assert.Error(t, err)

	assert.Equal(t, "ca", e.mustRun("cert", "list"))
	assert.Equal(t, caPEM, e.mustRun("cert", "show", "ca"))
}

func newRemote(t *testing.T) *custodian.Wallet {
	t.Helper()
	be, err := software.NewBackend(&software.Config{KeyStorage: memory.New(), Logger: logging.Discard()})
	require.NoError(t, err)
	wallet, err := custodian.NewWallet(&custodian.Config{Backend: be, Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = wallet.Close() })
	return wallet
}

func TestRemoteKeyStore(t *testing.T) {
	wallet := newRemote(t)
	s, err := rest.NewServer(&rest.Config{Wallet: wallet, Logger: logging.Discard()})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	e := newEnv(t, "--remote", srv.URL)
	id := e.mustRun("key", "generate", "-a", "Ed25519")
	assert.Equal(t, []string{id}, wallet.Keys())
	assert.Equal(t, id, e.mustRun("key", "list"))

	signature := e.mustRun("key", "sign", id, "--data", "remote")
	assert.Equal(t, "Signature valid", e.mustRun("key", "verify", id, "-s", signature, "--data", "remote"))
	assert.Contains(t, e.mustRun("key", "export", id), "-----BEGIN PUBLIC KEY-----")

	out := e.mustRun("random", "-n", "8")
	assert.Len(t, out, 16)

	_, err = e.run("token", "--key", id, "--subject", "alice")
	assert.ErrorIs(t, err, ErrLocalOnly)

	e.mustRun("key", "delete", id)
	assert.Empty(t, wallet.Keys())
}

func TestConfigFile(t *testing.T) {
	e := newEnv(t)
	bad := e.writeFile("bad.yaml", "logging:\n  level: loud\n")
	_, err := e.run("key", "list", "--config", bad)
	assert.Error(t, err)

	dir := t.TempDir()
	good := e.writeFile("good.yaml", "storage:\n  backend: file\n  path: "+dir+"\n")
	id := e.mustRun("key", "generate", "--config", good)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	assert.Equal(t, id, e.mustRun("key", "list", "--config", good))
	assert.Equal(t, "No keys found", e.mustRun("key", "list"))
}
