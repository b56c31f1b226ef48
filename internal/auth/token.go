package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails parsing, signature,
// expiry, or type checks.
var ErrInvalidToken = eris.New("auth: invalid token")

// TokenManager issues and verifies HS256 access and refresh tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager creates a TokenManager with the given signing secret and
// token lifetimes.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// CreateAccessToken issues a short-lived access token for the subject.
func (m *TokenManager) CreateAccessToken(sub string) (string, error) {
	return m.create(sub, tokenTypeAccess, m.accessTTL)
}

// CreateRefreshToken issues a long-lived refresh token for the subject.
func (m *TokenManager) CreateRefreshToken(sub string) (string, error) {
	return m.create(sub, tokenTypeRefresh, m.refreshTTL)
}

func (m *TokenManager) create(sub, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  sub,
		"exp":  m.now().UTC().Add(ttl).Unix(),
		"type": typ,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return signed, nil
}

// VerifyAccessToken validates an access token and returns its subject.
func (m *TokenManager) VerifyAccessToken(tokenStr string) (string, error) {
	return m.verify(tokenStr, tokenTypeAccess)
}

// VerifyRefreshToken validates a refresh token and returns its subject.
func (m *TokenManager) VerifyRefreshToken(tokenStr string) (string, error) {
	return m.verify(tokenStr, tokenTypeRefresh)
}

func (m *TokenManager) verify(tokenStr, wantType string) (string, error) {
	token, err := jwt.Parse(tokenStr,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if typ, _ := claims["type"].(string); typ != wantType {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
