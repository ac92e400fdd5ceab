package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestCheckExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, checkExpiry("opaque-token", now))
	assert.NoError(t, checkExpiry(signed(t, jwt.MapClaims{"id": "u1"}), now))
	assert.NoError(t, checkExpiry(signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), now))
	assert.ErrorIs(t, checkExpiry(signed(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), now), ErrTokenExpired)
}
