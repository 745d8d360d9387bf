package detection

import (
	"errors"
	"fmt"
)

var (
	ErrNoImage       = errors.New("detection: empty image")
	ErrModelNotFound = errors.New("detection: model file not found")
)

// APIError is a non-200 reply from the remote /detect endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("detection: backend answered %d: %s", e.StatusCode, e.Message)
}

// IsServerError reports a 5xx, which usually means the model crashed
// rather than that the frame was bad.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}
