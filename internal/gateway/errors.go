package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for gateway operations.
var (
	// ErrAccountNotFound is returned when the gateway has no account for the
	// requested ID. This is the normal first-contact case, not a failure.
	ErrAccountNotFound = errors.New("gateway: account not found")

	// ErrEmptyKey is returned when the gateway reports success but the
	// response carries no key material.
	ErrEmptyKey = errors.New("gateway: empty key in response")
)

// APIError describes a non-2xx admin API response that is not covered by a
// sentinel error. The body is truncated for logging safety.
type APIError struct {
	Body       string
	StatusCode int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsConflict reports whether the response indicates the resource already
// exists. The gateway signals duplicate accounts with 400 or 409.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusBadRequest
}

// maxErrorBodyBytes bounds how much of an error response body is kept.
const maxErrorBodyBytes = 512

// truncateBody trims a response body for inclusion in errors and logs.
func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		return string(body[:maxErrorBodyBytes]) + "..."
	}
	return string(body)
}
