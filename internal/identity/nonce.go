package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"pathways/internal/storage"
	"pathways/pkg/logging"
)

// NonceStore holds the single CSRF nonce that binds an outbound login
// redirect to its matching callback. At most one nonce is live at a time;
// issuing a new one replaces any previous value, and a nonce is consumed
// exactly once.
type NonceStore struct {
	backend storage.Store
	key     string
}

// NewNonceStore creates a nonce store persisting under key.
func NewNonceStore(backend storage.Store, key string) *NonceStore {
	return &NonceStore{backend: backend, key: key}
}

// Issue generates a fresh random nonce and stores it, replacing any
// previous one.
func (n *NonceStore) Issue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(buf)

	if err := n.backend.Set(n.key, nonce); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	logging.Debug("Identity", "Issued login nonce")
	return nonce, nil
}

// Consume returns the stored nonce and deletes it. The second return is
// false when no nonce was live.
func (n *NonceStore) Consume() (string, bool) {
	nonce, ok, err := n.backend.Get(n.key)
	if err != nil {
		logging.Warn("Identity", "Failed to read stored nonce: %v", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	if err := n.backend.Delete(n.key); err != nil {
		logging.Warn("Identity", "Failed to clear consumed nonce: %v", err)
	}
	return nonce, true
}

// Clear removes any live nonce.
func (n *NonceStore) Clear() {
	if err := n.backend.Delete(n.key); err != nil {
		logging.Warn("Identity", "Failed to clear nonce: %v", err)
	}
}
