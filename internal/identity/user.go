// Package identity talks to the identity service: it initiates provider
// login redirects, completes callbacks with CSRF verification, resolves the
// current user, refreshes the session token, and logs out.
package identity

import (
	"fmt"
	"time"

	"pathways/internal/token"
)

// Provider names accepted for login.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// ValidProvider reports whether name is a supported identity provider.
func ValidProvider(name string) bool {
	return name == ProviderGoogle || name == ProviderGitHub
}

// User is the resolved identity of the session. Values are immutable once
// constructed; a new login or refresh replaces the value wholesale.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
}

// userFromClaims constructs a degraded-fallback User from locally decoded
// token claims, used when the identity lookup is unreachable.
func userFromClaims(claims *token.Claims) *User {
	if claims == nil {
		return nil
	}
	u := &User{
		ID:       claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Avatar:   claims.Avatar,
		Provider: claims.Provider,
	}
	if claims.IssuedAt != nil {
		u.CreatedAt = claims.IssuedAt.Time
	}
	return u
}

// String renders a short description without exposing credentials.
func (u *User) String() string {
	return fmt.Sprintf("%s <%s> via %s", u.Name, u.Email, u.Provider)
}
