package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scopeSet(scopes ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		m[s] = struct{}{}
	}
	return m
}

func TestHasScope(t *testing.T) {
	cases := []struct {
		name     string
		scopes   []string
		required string
		want     bool
	}{
		{"exact match", []string{"tools:echo"}, "tools:echo", true},
		{"category wildcard", []string{"tools:*"}, "tools:echo", true},
		{"universal wildcard", []string{"*:*"}, "resources:read", true},
		{"no match", []string{"tools:echo"}, "tools:other", false},
		{"empty scopes", nil, "tools:echo", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			u := &User{Scopes: scopeSet(c.scopes...)}
			assert.Equal(t, c.want, u.HasScope(c.required))
		})
	}
}

func TestHasLevel(t *testing.T) {
	u := &User{Level: 5}
	assert.True(t, u.HasLevel(5))
	assert.True(t, u.HasLevel(10))
	assert.False(t, u.HasLevel(1))
}

func TestGetTokenPrecedence(t *testing.T) {
	req := &Request{
		Headers: map[string]string{
			"authorization": "Bearer bearer-token",
			"x-api-token":   "api-token",
		},
		Query: map[string]string{"key": "query-token"},
	}
	assert.Equal(t, "api-token", req.GetToken())

	req2 := &Request{
		Headers: map[string]string{"authorization": "Bearer bearer-token"},
		Query:   map[string]string{"key": "query-token"},
	}
	assert.Equal(t, "bearer-token", req2.GetToken())

	req3 := &Request{Query: map[string]string{"key": "query-token"}}
	assert.Equal(t, "query-token", req3.GetToken())

	assert.Equal(t, "", (&Request{}).GetToken())
}

func TestGetBearerTokenCaseInsensitivePrefix(t *testing.T) {
	req := &Request{Headers: map[string]string{"authorization": "BEARER abc123"}}
	assert.Equal(t, "abc123", req.GetBearerToken())
}

func TestResultVariants(t *testing.T) {
	ok := Success(&User{ID: "u1"}, "ws1")
	assert.True(t, ok.IsSuccess())
	assert.False(t, ok.IsFailed())
	assert.Equal(t, "u1", ok.User().ID)

	failed := Failed("bad token")
	assert.False(t, failed.IsSuccess())
	assert.True(t, failed.IsFailed())
	assert.Equal(t, "bad token", failed.Reason())

	none := Unauthenticated()
	assert.False(t, none.IsSuccess())
	assert.False(t, none.IsFailed())
}
