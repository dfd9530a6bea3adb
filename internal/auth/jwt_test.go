package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("secret", "HS256", 60)

	token, err := issuer.Issue("user-1", 0)
	require.NoError(t, err)

	userID, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("secret", "HS256", 60)
	token, err := issuer.Issue("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("one", "HS256", 60).Issue("user-1", 0)
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", "HS256", 60).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithm(t *testing.T) {
	token, err := NewTokenIssuer("secret", "HS512", 60).Issue("user-1", 0)
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", "HS256", 60).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRequiresUserID(t *testing.T) {
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", "HS256", 60).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnknownAlgorithmFallsBackToHS256(t *testing.T) {
	issuer := NewTokenIssuer("secret", "RS256", 0)
	assert.Equal(t, "HS256", issuer.method.Alg())
	assert.Equal(t, 24*time.Hour, issuer.ttl)
}

func TestMissingSecret(t *testing.T) {
	issuer := NewTokenIssuer("", "HS256", 60)
	_, err := issuer.Issue("user-1", 0)
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = issuer.Parse("whatever")
	assert.ErrorIs(t, err, ErrNoSecret)
}
