package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coursehub/integration-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

func TestSignVerify_RoundTrip(t *testing.T) {
	k := newKey(t)
	p := NewProviderFromKeys(k, &k.PublicKey, time.Hour)

	tok, err := p.Sign("U1", "a@b.com")
	require.NoError(t, err)
	c, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "U1", c.UserID)
	assert.Equal(t, "a@b.com", c.Email)
}

func TestVerify_Expired(t *testing.T) {
	k := newKey(t)
	p := NewProviderFromKeys(k, &k.PublicKey, -time.Minute)
	tok, err := p.Sign("U1", "")
	require.NoError(t, err)
	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_WrongKey(t *testing.T) {
	k1, k2 := newKey(t), newKey(t)
	tok, err := NewProviderFromKeys(k1, &k1.PublicKey, time.Hour).Sign("U1", "")
	require.NoError(t, err)
	_, err = NewProviderFromKeys(nil, &k2.PublicKey, time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestVerify_RejectsHMAC(t *testing.T) {
	k := newKey(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "U1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewProviderFromKeys(nil, &k.PublicKey, time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestSign_WithoutPrivateKey(t *testing.T) {
	k := newKey(t)
	_, err := NewProviderFromKeys(nil, &k.PublicKey, time.Hour).Sign("U1", "")
	assert.Error(t, err)
}

func TestNewProvider_PublicKeyOnly(t *testing.T) {
	k := newKey(t)
	der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "public_key.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	p, err := NewProvider(&config.Config{
		JWTPublicKeyPath:  pubPath,
		JWTPrivateKeyPath: filepath.Join(dir, "missing.pem"),
		JWTExpiry:         time.Hour,
	})
	require.NoError(t, err)

	tok, err := NewProviderFromKeys(k, &k.PublicKey, time.Hour).Sign("U1", "")
	require.NoError(t, err)
	_, err = p.Verify(tok)
	assert.NoError(t, err)
}
