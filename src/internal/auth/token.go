package auth

import (
	"fmt"
	"sync"
	"time"

	"logcourier/src/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 5 * time.Minute

// TokenSigner mints short-lived HS256 bearer tokens for outbound HTTP
// deliveries. Tokens are cached and re-signed shortly before expiry.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSigner creates a signer from validated auth options.
func NewTokenSigner(cfg *config.NetworkAuthConfig) (*TokenSigner, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt auth requires a secret")
	}
	ttl := defaultTokenTTL
	if cfg.JWTTTLSeconds > 0 {
		ttl = time.Duration(cfg.JWTTTLSeconds) * time.Second
	}
	return &TokenSigner{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    ttl,
	}, nil
}

// Bearer returns a valid token, re-signing when the cached one is
// within 10% of expiry.
func (s *TokenSigner) Bearer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.token != "" && now.Before(s.expires.Add(-s.ttl/10)) {
		return s.token, nil
	}

	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign bearer token: %w", err)
	}

	s.token = token
	s.expires = now.Add(s.ttl)
	return token, nil
}
