package httpclient

import (
	"errors"
	"fmt"
)

// ErrAuthExpired indicates the backend rejected the session credential with
// HTTP 401. It is handled once via the auth-failure hook and never enters
// the transient retry loop.
var ErrAuthExpired = errors.New("session credential rejected")

// ErrExhausted indicates a request failed after all retry attempts.
// It is distinguishable from ErrAuthExpired via errors.Is.
var ErrExhausted = errors.New("request attempts exhausted")

// StatusError is a non-2xx HTTP response treated as a transient failure.
type StatusError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}
