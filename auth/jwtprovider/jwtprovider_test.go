package jwtprovider

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymcp/relay/auth"
)

const testSecret = "test-signing-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestAuthenticateSuccess(t *testing.T) {
	p, err := New(Config{Key: []byte(testSecret), AllowedAlgs: []string{"HS256"}})
	require.NoError(t, err)

	tok := signHS256(t, jwt.MapClaims{
		"sub":   "user-1",
		"scope": "tools:echo resources:*",
		"level": float64(2),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	res, err := p.Authenticate(context.Background(), &auth.Request{
		Headers: map[string]string{"authorization": "Bearer " + tok},
	})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, "user-1", res.User().ID)
	assert.True(t, res.User().HasScope("tools:echo"))
	assert.True(t, res.User().HasScope("resources:read"))
	assert.False(t, res.User().HasScope("prompts:get"))
	assert.Equal(t, 2, res.User().Level)
}

func TestAuthenticateNoTokenIsUnauthenticated(t *testing.T) {
	p, err := New(Config{Key: []byte(testSecret), AllowedAlgs: []string{"HS256"}})
	require.NoError(t, err)

	res, err := p.Authenticate(context.Background(), &auth.Request{})
	require.NoError(t, err)
	assert.False(t, res.IsSuccess())
	assert.False(t, res.IsFailed())
}

func TestAuthenticateExpiredTokenFails(t *testing.T) {
	p, err := New(Config{Key: []byte(testSecret), AllowedAlgs: []string{"HS256"}})
	require.NoError(t, err)

	tok := signHS256(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	res, err := p.Authenticate(context.Background(), &auth.Request{
		Headers: map[string]string{"authorization": "Bearer " + tok},
	})
	require.NoError(t, err)
	assert.True(t, res.IsFailed())
}

func TestAuthenticateMissingSubjectFails(t *testing.T) {
	p, err := New(Config{Key: []byte(testSecret), AllowedAlgs: []string{"HS256"}})
	require.NoError(t, err)

	tok := signHS256(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	res, err := p.Authenticate(context.Background(), &auth.Request{
		Headers: map[string]string{"authorization": "Bearer " + tok},
	})
	require.NoError(t, err)
	assert.True(t, res.IsFailed())
}
