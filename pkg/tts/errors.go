package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for provider setup and synthesis.
var (
	// ErrNoAPIKey is returned by NewGoogle without a key.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrEmptyText is returned for blank input; nothing is sent.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrEngineNotFound means the local espeak binary is not on PATH.
	ErrEngineNotFound = errors.New("tts: speech engine not installed")

	// ErrProviderUnavailable is returned by a Chain built with no providers.
	ErrProviderUnavailable = errors.New("tts: no providers available")

	// ErrAllProvidersFailed is wrapped by ChainError when every provider,
	// benched ones included, failed the same request.
	ErrAllProvidersFailed = errors.New("tts: all providers failed")
)

// APIError is a non-2xx answer from a cloud voice.
type APIError struct {
	Provider   string
	StatusCode int
	Reason     string // e.g. "rateLimitExceeded", "API_KEY_INVALID"
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tts [%s]: %d %s: %s", e.Provider, e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("tts [%s]: %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports a quota or rate rejection.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Reason == "rateLimitExceeded"
}

// IsUnauthorized reports a missing, invalid or restricted key. Google
// answers 403 for keys that are valid but not enabled for the API.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		(e.StatusCode == http.StatusForbidden && !e.IsRateLimited())
}

// IsServerError reports a 5xx. These are usually transient on Google.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable reports whether the same request may succeed later.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError tags an error with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

// Unwrap allows errors.Is and errors.As to see the cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError tags err with provider; nil stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
