package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager(testSecret, "custody-test")

	t.Run("Round trip", func(t *testing.T) {
		tok, err := tm.GenerateAccessToken("u1", "u1@example.com", []string{"admin"}, time.Hour)
		require.NoError(t, err)

		claims, err := tm.ValidateToken(tok)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, "u1@example.com", claims.Email)
		assert.True(t, claims.HasRole("admin"))
		assert.False(t, claims.HasRole("auditor"))
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("Expired", func(t *testing.T) {
		tok, err := tm.GenerateAccessToken("u1", "", nil, -time.Minute)
		require.NoError(t, err)
		_, err = tm.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		tok, err := NewTokenManager("another-secret-that-is-32-characters", "custody-test").
			GenerateAccessToken("u1", "", nil, time.Hour)
		require.NoError(t, err)
		_, err = tm.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Wrong issuer", func(t *testing.T) {
		tok, err := NewTokenManager(testSecret, "elsewhere").GenerateAccessToken("u1", "", nil, time.Hour)
		require.NoError(t, err)
		_, err = tm.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Missing subject", func(t *testing.T) {
		tok, err := tm.GenerateAccessToken("", "", nil, time.Hour)
		require.NoError(t, err)
		_, err = tm.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Unsigned token", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	_, err := tm.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
