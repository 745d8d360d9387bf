package directions

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when no Maps API key is configured.
	ErrNoAPIKey = errors.New("directions: API key required")

	// ErrNoRoute is returned when the provider finds no walking route.
	ErrNoRoute = errors.New("directions: no route found")

	// ErrNoGeometry is returned when place details carry no location.
	ErrNoGeometry = errors.New("directions: place has no geometry")
)

// APIError is a non-OK status returned by the Maps web services.
type APIError struct {
	Status  string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directions: %s", e.Status)
	}
	return fmt.Sprintf("directions: %s: %s", e.Status, e.Message)
}

// IsRateLimited returns true for OVER_QUERY_LIMIT.
func (e *APIError) IsRateLimited() bool {
	return e.Status == "OVER_QUERY_LIMIT"
}

// IsUnauthorized returns true when the key was rejected.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == "REQUEST_DENIED"
}

// IsRetryable returns true if the request may succeed later.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.Status == "UNKNOWN_ERROR"
}

// convertError turns "maps: STATUS - message" status errors into APIError.
// Transport and decode errors are wrapped unchanged.
func convertError(op string, err error) error {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "maps: "); ok {
		if status, detail, found := strings.Cut(rest, " - "); found && isStatus(status) {
			return fmt.Errorf("%s: %w", op, &APIError{Status: status, Message: detail})
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isStatus(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return true
}
