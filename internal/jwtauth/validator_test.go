package jwtauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-signing-key"

func sign(t *testing.T, key string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	v, err := New(testKey, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		token := sign(t, testKey, tokenClaims{
			ClientID: "closing-platform",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "analyst@titleco.example",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		})

		claims, err := v.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "analyst@titleco.example", claims.Subject)
		assert.Equal(t, "closing-platform", claims.ClientID)
	})

	t.Run("expired token", func(t *testing.T) {
		token := sign(t, testKey, jwt.RegisteredClaims{
			Subject:   "analyst@titleco.example",
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		})
		_, err := v.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("missing expiry rejected", func(t *testing.T) {
		token := sign(t, testKey, jwt.RegisteredClaims{Subject: "analyst@titleco.example"})
		_, err := v.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		token := sign(t, "other-key", jwt.RegisteredClaims{
			Subject:   "analyst@titleco.example",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		})
		_, err := v.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := sign(t, testKey, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		})
		_, err := v.ValidateToken(token)
		assert.ErrorContains(t, err, "missing sub claim")
	})

	t.Run("unsigned algorithm rejected", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "analyst@titleco.example",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.ValidateToken(unsigned)
		assert.Error(t, err)
	})
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
