package token

import (
	"errors"
	"time"

	"golang.org/x/oauth2"

	"pathways/internal/storage"
	"pathways/pkg/logging"
)

// ErrNoToken indicates that no session token is currently stored.
var ErrNoToken = errors.New("no session token")

// Store holds the single session token under a configurable storage key.
//
// SECURITY: token values are never logged, only their expiry metadata.
// Mutations are synchronous: a Set or Clear is immediately observable to
// subsequent calls.
type Store struct {
	backend storage.Store
	key     string
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the time source used for expiry checks. Tests use this to
// avoid real clocks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a token store persisting to backend under key.
func NewStore(backend storage.Store, key string, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		key:     key,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set persists the token, replacing any previous one.
func (s *Store) Set(raw string) error {
	if err := s.backend.Set(s.key, raw); err != nil {
		return err
	}
	if claims, err := Decode(raw); err == nil && claims.ExpiresAt != nil {
		logging.Debug("Token", "Stored session token (expires %s)",
			claims.ExpiresAt.Time.Format(time.RFC3339))
	} else {
		logging.Debug("Token", "Stored session token (no expiry claim)")
	}
	return nil
}

// Get returns the raw stored token. Storage read failures are logged and
// reported as absence.
func (s *Store) Get() (string, bool) {
	raw, ok, err := s.backend.Get(s.key)
	if err != nil {
		logging.Warn("Token", "Failed to read stored token: %v", err)
		return "", false
	}
	return raw, ok
}

// Clear removes the stored token.
func (s *Store) Clear() error {
	return s.backend.Delete(s.key)
}

// Decode returns the claims of the stored token, or an error when no token
// is stored or it cannot be parsed.
func (s *Store) Decode() (*Claims, error) {
	raw, ok := s.Get()
	if !ok {
		return nil, ErrNoToken
	}
	return Decode(raw)
}

// Claims returns the decoded claims or nil. Decode failures never reach the
// caller; they degrade to nil and are logged.
func (s *Store) Claims() *Claims {
	claims, err := s.Decode()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			logging.Warn("Token", "Failed to decode stored token: %v", err)
		}
		return nil
	}
	return claims
}

// IsValid reports whether a structurally valid, unexpired token is stored.
// It fails closed: decode errors, a missing expiry claim, or an expiry at or
// before now all yield false.
func (s *Store) IsValid() bool {
	claims, err := s.Decode()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			logging.Debug("Token", "Treating undecodable token as invalid: %v", err)
		}
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return s.now().Add(ExpiryMargin).Before(claims.ExpiresAt.Time)
}

// Record returns the stored token as an oauth2 token for credential
// injection, or nil when no token is stored.
func (s *Store) Record() *oauth2.Token {
	raw, ok := s.Get()
	if !ok {
		return nil
	}
	record := &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
	}
	if claims, err := Decode(raw); err == nil && claims.ExpiresAt != nil {
		record.Expiry = claims.ExpiresAt.Time
	}
	return record
}

// Token implements oauth2.TokenSource over the store, so HTTP clients can
// pull the current credential on every request.
func (s *Store) Token() (*oauth2.Token, error) {
	record := s.Record()
	if record == nil {
		return nil, ErrNoToken
	}
	return record, nil
}
