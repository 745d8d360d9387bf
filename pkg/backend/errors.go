package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated means no bearer token is saved; log in first.
	ErrNotAuthenticated = errors.New("backend: not authenticated")

	// ErrRejected is a 2xx reply whose envelope says ok=false.
	ErrRejected = errors.New("backend: request rejected")
)

// APIError is a non-2xx reply. Message is the envelope's error field
// when present, else the raw body.
type APIError struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s: %d: %s", e.Path, e.StatusCode, e.Message)
}

// IsUnauthorized reports an expired or revoked token.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
