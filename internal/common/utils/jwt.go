package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerClaims are the claims we care about in a linked bearer token.
type BearerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// PeekBearerClaims decodes a bearer token's claims without verifying the
// signature. The banking backend is the authority on the token; the peek
// only serves logging and the expiry short-circuit, so an opaque
// (non-JWT) token is reported as an error the caller may ignore.
func PeekBearerClaims(token string) (*BearerClaims, error) {
	claims := &BearerClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expired reports whether the claims carry an exp in the past. Tokens
// without an exp claim are not considered expired.
func (c *BearerClaims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Before(now)
}
