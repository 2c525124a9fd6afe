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

package encoding

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-webcrypto/pkg/types"
)

func TestKeyFromECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k, err := FromPrivateKey(priv)
	require.NoError(t, err)
	assert.Equal(t, types.AlgorithmECDSA, k.Algorithm)
	assert.Equal(t, types.CurveP256, k.Curve)
	assert.Len(t, k.Public, P256CompressedSize)
	assert.Len(t, k.Private, P256ScalarSize)
	assert.True(t, k.IsPrivate())
	require.NoError(t, k.Validate())

	pub, err := k.PublicKey()
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))

	rebuilt, err := k.PrivateKey()
	require.NoError(t, err)
	assert.True(t, priv.Equal(rebuilt))

	public := k.PublicOnly()
	assert.False(t, public.IsPrivate())
	assert.Equal(t, k.Public, public.Public)
}

func TestKeyFromEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	k, err := FromPrivateKey(priv)
	require.NoError(t, err)
	assert.Equal(t, types.AlgorithmEd25519, k.Algorithm)
	assert.Equal(t, []byte(pub), k.Public)
	assert.Len(t, k.Private, ed25519.SeedSize)
	require.NoError(t, k.Validate())

	rebuilt, err := k.PrivateKey()
	require.NoError(t, err)
	assert.True(t, priv.Equal(rebuilt))
}

func TestKeyValidateErrors(t *testing.T) {
	bad := Key{Algorithm: types.AlgorithmECDSA, Curve: types.CurveP256, Public: []byte{0x02, 0x01}}
	assert.True(t, errors.Is(bad.Validate(), types.ErrMalformedInput))

	curve := Key{Algorithm: types.AlgorithmECDSA, Curve: "P-384"}
	assert.True(t, errors.Is(curve.Validate(), types.ErrUnsupportedAlgorithm))

	ed := Key{Algorithm: types.AlgorithmEd25519, Public: make([]byte, 31)}
	err := ed.Validate()
	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "x", malformed.Field)

	_, err = Key{Algorithm: types.AlgorithmSHA1}.PublicKey()
	assert.True(t, errors.Is(err, types.ErrUnsupportedAlgorithm))
}

func TestECDSAPrivateKeyFromScalarRejectsZero(t *testing.T) {
	_, err := ECDSAPrivateKeyFromScalar(make([]byte, P256ScalarSize))
	assert.True(t, errors.Is(err, types.ErrMalformedInput))
}

func TestSignatureConversion(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("message"))

	der, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)

	raw, err := ECDSASignatureToRaw(der, 32)
	require.NoError(t, err)
	assert.Len(t, raw, P256SignatureSize)

	back, err := ECDSASignatureToASN1(raw)
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(&priv.PublicKey, digest[:], back))
}

func TestSignatureConversionErrors(t *testing.T) {
	_, err := ECDSASignatureToRaw([]byte{0x30, 0x01}, 32)
	assert.True(t, errors.Is(err, types.ErrMalformedInput))

	_, err = ECDSASignatureToASN1([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, types.ErrMalformedInput))
}

func TestMalformedInputError(t *testing.T) {
	inner := errors.New("bad base64")
	err := MalformedWrap("x", inner)
	assert.True(t, errors.Is(err, types.ErrMalformedInput))
	assert.True(t, errors.Is(err, inner))
	assert.Contains(t, err.Error(), "x")
	assert.Contains(t, Malformed("crv", "unknown").Error(), "crv: unknown")
}

func selfSignedDER(t *testing.T) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"example.com"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	return der
}

func TestDecodeCertificateFormats(t *testing.T) {
	der := selfSignedDER(t)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pemData, err := EncodeCertificatePEM(cert)
	require.NoError(t, err)

	inputs := map[string][]byte{
		"der":        der,
		"pem":        pemData,
		"base64":     []byte(base64.StdEncoding.EncodeToString(der)),
		"base64 url": []byte(base64.RawURLEncoding.EncodeToString(der)),
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeCertificate(input)
			require.NoError(t, err)
			assert.Equal(t, der, got.Raw)
		})
	}

	_, err = DecodeCertificate(nil)
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = DecodeCertificate([]byte("!!!not a certificate!!!"))
	assert.True(t, errors.Is(err, types.ErrMalformedInput))
}

func TestCertificatesPEMRoundTrip(t *testing.T) {
	first, err := x509.ParseCertificate(selfSignedDER(t))
	require.NoError(t, err)
	second, err := x509.ParseCertificate(selfSignedDER(t))
	require.NoError(t, err)

	data, err := EncodeCertificatesPEM([]*x509.Certificate{first, second})
	require.NoError(t, err)

	certs, err := DecodeCertificatesPEM(data)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, first.Raw, certs[0].Raw)
	assert.Equal(t, second.Raw, certs[1].Raw)

	_, err = DecodeCertificatesPEM([]byte("nothing"))
	assert.ErrorIs(t, err, ErrInvalidPEMEncoding)
}

func TestPublicKeyPEM(t *testing.T) {
	data, err := EncodePublicKeyPEM([]byte{0x30, 0x00})
	require.NoError(t, err)
	der, err := DecodePublicKeyPEM(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x00}, der)
}

func TestPKCS8(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	t.Run("plain", func(t *testing.T) {
		der, err := EncodePKCS8(priv, nil)
		require.NoError(t, err)
		key, err := DecodePKCS8(der, nil)
		require.NoError(t, err)
		assert.True(t, priv.Equal(key))
	})

	t.Run("encrypted", func(t *testing.T) {
		password := []byte("correct horse")
		der, err := EncodePKCS8(priv, password)
		require.NoError(t, err)

		key, err := DecodePKCS8(der, password)
		require.NoError(t, err)
		assert.True(t, priv.Equal(key))

		_, err = DecodePKCS8(der, []byte("wrong"))
		assert.Error(t, err)
	})

	_, err = EncodePKCS8(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
	_, err = DecodePKCS8(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)
}
