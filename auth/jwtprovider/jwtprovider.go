// Package jwtprovider is a concrete auth.Provider that validates bearer
// tokens as JWTs against a statically configured verification key. Unlike
// an OIDC-discovery authenticator, it never performs network I/O itself:
// the caller supplies the key up front, which keeps it usable in the
// subprocess-pipe transport where no outbound HTTP is otherwise needed.
package jwtprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/relaymcp/relay/auth"
)

// Config controls token validation.
type Config struct {
	// Key is the verification key: an *rsa.PublicKey, *ecdsa.PublicKey, or
	// []byte for HMAC, matching whatever AllowedAlgs expects.
	Key any
	// Issuer, when non-empty, is required to match the token's "iss" claim.
	Issuer string
	// Audience, when non-empty, is required to appear in the token's "aud"
	// claim.
	Audience string
	// AllowedAlgs restricts accepted signing algorithms. Defaults to
	// ["RS256"] when empty.
	AllowedAlgs []string
	// Leeway bounds clock skew tolerance for exp/nbf/iat. Defaults to 60s.
	Leeway time.Duration
	// ScopeClaim names the claim holding a space-delimited scope string.
	// Defaults to "scope".
	ScopeClaim string
	// LevelClaim names the claim holding the numeric privilege level.
	// Defaults to "level"; a token without it gets level 0 (most
	// privileged), matching a bearer token being trusted at face value.
	LevelClaim string
}

// Provider validates bearer JWTs and maps their claims onto auth.User.
type Provider struct {
	cfg    Config
	parser *jwt.Parser
}

// New constructs a Provider from cfg, applying defaults for AllowedAlgs,
// Leeway, ScopeClaim, and LevelClaim.
func New(cfg Config) (*Provider, error) {
	if cfg.Key == nil {
		return nil, errors.New("jwtprovider: key is required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"RS256"}
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 60 * time.Second
	}
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.LevelClaim == "" {
		cfg.LevelClaim = "level"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Provider{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// Authenticate implements auth.Provider.
func (p *Provider) Authenticate(ctx context.Context, req *auth.Request) (auth.Result, error) {
	tok := req.GetToken()
	if tok == "" {
		return auth.Unauthenticated(), nil
	}

	claims := jwt.MapClaims{}
	_, err := p.parser.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return p.cfg.Key, nil
	})
	if err != nil {
		return auth.Failed(fmt.Sprintf("invalid token: %v", err)), nil
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return auth.Failed("token missing sub claim"), nil
	}

	user := &auth.User{
		ID:     sub,
		Scopes: parseScopes(claims[p.cfg.ScopeClaim]),
		Level:  parseLevel(claims[p.cfg.LevelClaim]),
		Extra:  map[string]any(claims),
	}
	if name, ok := claims["name"].(string); ok {
		user.Name = name
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if ws, ok := claims["workspace"].(string); ok {
		user.Workspace = ws
	}

	return auth.Success(user, user.Workspace), nil
}

func parseScopes(v any) map[string]struct{} {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	out := map[string]struct{}{}
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out[s[start:i]] = struct{}{}
			}
			start = i + 1
		}
	}
	return out
}

func parseLevel(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
