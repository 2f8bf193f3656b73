// Package token manages the persisted session token: storage under a
// configurable key, claims decoding, and expiry inspection.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryMargin is subtracted from the token lifetime when checking validity.
// This accounts for clock skew between systems and network latency.
const ExpiryMargin = 30 * time.Second

// ErrMalformed indicates a token that could not be decoded.
var ErrMalformed = errors.New("malformed session token")

// Claims are the identity claims embedded in the session token.
type Claims struct {
	jwt.RegisteredClaims

	// Email is the account email address.
	Email string `json:"email,omitempty"`

	// Name is the display name.
	Name string `json:"name,omitempty"`

	// Avatar is an optional avatar image URL.
	Avatar string `json:"avatar,omitempty"`

	// Provider is the identity provider that issued the login
	// ("google" or "github").
	Provider string `json:"provider,omitempty"`
}

// Decode parses the claims out of a signed token without verifying the
// signature. Authenticity is asserted by the issuing service; the client only
// inspects identity and expiry.
func Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

// ExpiresIn returns the remaining lifetime of the token at the given instant.
// A token without an expiry claim reports zero remaining lifetime.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
