package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backendToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(exp)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-only"))
	require.NoError(t, err)
	return token
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := ExpiresAt(backendToken(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = ExpiresAt("opaque-token")
	assert.False(t, ok)
}

func TestExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, Expired(backendToken(t, now.Add(-time.Minute)), now))
	assert.False(t, Expired(backendToken(t, now.Add(time.Minute)), now))
	assert.False(t, Expired("opaque-token", now))
}

func TestSessionCookieRoundTrip(t *testing.T) {
	svc := NewService("secret", time.Hour)

	signed, err := svc.Sign("sess-1")
	require.NoError(t, err)

	id, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)

	_, err = NewService("other", time.Hour).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionCookieExpiry(t *testing.T) {
	svc := NewService("secret", time.Minute)
	signed, err := svc.Sign("sess-1")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
