package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v57/github"

	"github.com/codeproof/codeproof-go/internal/errors"
)

// Installation tokens live an hour; refresh this long before expiry so
// in-flight requests never race the cutoff.
const tokenRefreshBuffer = 5 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// AppAuth mints GitHub App JWTs and exchanges them for per-installation
// access tokens, caching tokens until shortly before expiry.
type AppAuth struct {
	appID      int64
	privateKey *rsa.PrivateKey

	mu     sync.Mutex
	tokens map[int64]cachedToken
	// now and mint are swapped out in tests.
	now  func() time.Time
	mint func(ctx context.Context, installID int64, appJWT string) (string, time.Time, error)
}

func NewAppAuth(appID int64, privateKeyPEM string) (*AppAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse github app private key: %w", err)
	}
	a := &AppAuth{
		appID:      appID,
		privateKey: key,
		tokens:     map[int64]cachedToken{},
		now:        time.Now,
	}
	a.mint = a.mintInstallationToken
	return a, nil
}

// AppJWT signs a short-lived RS256 JWT identifying the App itself. Issued
// a minute in the past to absorb clock drift, valid ten minutes.
func (a *AppAuth) AppJWT() (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": fmt.Sprintf("%d", a.appID),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}
	return signed, nil
}

// InstallationToken returns a valid access token for the installation,
// reusing the cached one while it has more than the refresh buffer left.
func (a *AppAuth) InstallationToken(ctx context.Context, installID int64) (string, error) {
	a.mu.Lock()
	if cached, ok := a.tokens[installID]; ok && a.now().Before(cached.expiresAt.Add(-tokenRefreshBuffer)) {
		a.mu.Unlock()
		return cached.token, nil
	}
	a.mu.Unlock()

	appJWT, err := a.AppJWT()
	if err != nil {
		return "", err
	}

	token, expiresAt, err := a.mint(ctx, installID, appJWT)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.tokens[installID] = cachedToken{token: token, expiresAt: expiresAt}
	a.mu.Unlock()

	return token, nil
}

func (a *AppAuth) mintInstallationToken(ctx context.Context, installID int64, appJWT string) (string, time.Time, error) {
	client := gh.NewClient(nil).WithAuthToken(appJWT)
	token, _, err := client.Apps.CreateInstallationToken(ctx, installID, nil)
	if err != nil {
		return "", time.Time{}, errors.AuthError(fmt.Sprintf("create installation token: %v", err))
	}

	expiresAt := a.now().Add(time.Hour)
	if token.ExpiresAt != nil {
		expiresAt = token.ExpiresAt.Time
	}
	return token.GetToken(), expiresAt, nil
}
