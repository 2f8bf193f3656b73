// Package storage provides the key-value persistence layer used for the
// session token and the login nonce. The interface keeps the session logic
// testable with an in-memory stand-in while production uses files.
package storage

// Store is a minimal key-value store. Implementations must make mutations
// immediately observable to subsequent calls.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}
