// Package auth issues and verifies the bearer tokens accepted by the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSecret is returned when no signing secret is configured.
	ErrNoSecret = errors.New("jwt secret not configured")
)

// Claims carried by an access token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HMAC access tokens.
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. Algorithms other than the HMAC family
// fall back to HS256.
func NewTokenIssuer(secret, algorithm string, expireMinutes int) *TokenIssuer {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		method = jwt.SigningMethodHS256
	}
	if expireMinutes <= 0 {
		expireMinutes = 60 * 24
	}
	return &TokenIssuer{
		secret: []byte(secret),
		method: method,
		ttl:    time.Duration(expireMinutes) * time.Minute,
		now:    time.Now,
	}
}

// Issue creates a signed token for userID. A zero ttl uses the configured
// lifetime.
func (t *TokenIssuer) Issue(userID string, ttl time.Duration) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrNoSecret
	}
	if ttl == 0 {
		ttl = t.ttl
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(t.now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the user id it was issued for.
func (t *TokenIssuer) Parse(token string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrNoSecret
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{t.method.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}
	return claims.UserID, nil
}
