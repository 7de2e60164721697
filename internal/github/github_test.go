package github

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrivateKeyPEM(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block)), key
}

func TestAppJWT_Claims(t *testing.T) {
	pemKey, key := testPrivateKeyPEM(t)
	auth, err := NewAppAuth(12345, pemKey)
	require.NoError(t, err)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issued }

	signed, err := auth.AppJWT()
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return issued }))
	require.NoError(t, err)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "12345", claims["iss"])
	assert.Equal(t, float64(issued.Add(-time.Minute).Unix()), claims["iat"])
	assert.Equal(t, float64(issued.Add(10*time.Minute).Unix()), claims["exp"])
}

func TestNewAppAuth_BadKey(t *testing.T) {
	_, err := NewAppAuth(1, "not a pem key")
	assert.Error(t, err)
}

func TestInstallationToken_CacheWindow(t *testing.T) {
	pemKey, _ := testPrivateKeyPEM(t)
	auth, err := NewAppAuth(1, pemKey)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return now }
	auth.tokens[7] = cachedToken{token: "cached-token", expiresAt: now.Add(time.Hour)}

	// Well inside the window: the cached token is reused without any
	// network call.
	tok, err := auth.InstallationToken(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, "cached-token", tok)

	// Within the 5-minute refresh buffer the cache is ignored and a new
	// token is minted.
	minted := 0
	auth.mint = func(_ context.Context, _ int64, _ string) (string, time.Time, error) {
		minted++
		return "fresh-token", now.Add(time.Hour), nil
	}
	now = now.Add(56 * time.Minute)
	tok, err = auth.InstallationToken(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok)
	assert.Equal(t, 1, minted)

	// And the fresh token is cached for the next call.
	tok, err = auth.InstallationToken(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok)
	assert.Equal(t, 1, minted)
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"action":"opened"}`)
	secret := "hook-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	valid := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyWebhookSignature(payload, valid, secret))
	assert.False(t, VerifyWebhookSignature(payload, valid, "wrong-secret"))
	assert.False(t, VerifyWebhookSignature([]byte("tampered"), valid, secret))
	assert.False(t, VerifyWebhookSignature(payload, "sha1=abcdef", secret))
	assert.False(t, VerifyWebhookSignature(payload, "", secret))
	assert.False(t, VerifyWebhookSignature(payload, valid, ""))
}

func TestVerifyWebhookSignature_RejectsEverySingleBitFlip(t *testing.T) {
	payload := []byte(`{"action":"opened"}`)
	secret := "hook-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	digest := mac.Sum(nil)

	require.True(t, VerifyWebhookSignature(payload, "sha256="+hex.EncodeToString(digest), secret))

	for bit := 0; bit < len(digest)*8; bit++ {
		flipped := append([]byte(nil), digest...)
		flipped[bit/8] ^= 1 << (bit % 8)
		sig := "sha256=" + hex.EncodeToString(flipped)
		assert.False(t, VerifyWebhookSignature(payload, sig, secret), "bit %d", bit)
	}
}
