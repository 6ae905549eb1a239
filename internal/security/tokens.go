package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed with the wrong secret.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// RefreshClaims holds JWT claims for the refresh token. Refresh tokens carry no
// expiry claim: their validity is decided by presence in the session registry,
// and revocation is deletion from that registry.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenProvider issues and validates JWT access and refresh tokens using HS256.
// Access and refresh tokens are signed with different secrets so that a leaked
// access-token secret cannot forge refresh tokens.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secrets.
// The secrets must be non-empty and must differ (enforced again here even
// though config validates it at startup).
func NewTokenProvider(accessSecret, refreshSecret []byte, accessTTL time.Duration) (*TokenProvider, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, errors.New("security: token secrets must be non-empty")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, errors.New("security: access and refresh secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &TokenProvider{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
	}, nil
}

// IssueAccess issues a short-lived access JWT asserting the given user id.
// Returns the token string and its expiration time. No side effects.
func (p *TokenProvider) IssueAccess(userID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(p.accessSecret)
	return token, expiresAt, err
}

// IssueRefresh issues a refresh JWT asserting the given user id. The token has
// no exp claim; the session registry is its trust boundary. No side effects.
func (p *TokenProvider) IssueRefresh(userID string) (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       jti,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.refreshSecret)
}

// ValidateAccess parses and validates the access token (signature + expiry)
// against the access secret. Returns the asserted user id.
func (p *TokenProvider) ValidateAccess(tokenString string) (userID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.accessSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// ValidateRefresh parses and validates the refresh token signature against the
// refresh secret. There is no expiry check; callers must confirm the token is
// still present in the session registry before trusting it.
func (p *TokenProvider) ValidateRefresh(tokenString string) (userID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.refreshSecret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
