// Package apierrors provides the transport error types shared by the API
// client and the public client package.
package apierrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingToken is returned when no bearer token is provided.
	ErrMissingToken = errors.New("access token is required")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrUnauthorized is returned when the token is invalid or expired.
	ErrUnauthorized = errors.New("invalid or expired access token")

	// ErrBadRequest is returned when the server rejects a request as incomplete.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound is returned when the endpoint or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// APIError represents an HTTP error response from the message server.
type APIError struct {
	StatusCode int
	Message    string
	// Endpoint is the function path that failed, e.g. "send-message".
	Endpoint string
}

func (e *APIError) Error() string {
	prefix := fmt.Sprintf("API error %d", e.StatusCode)
	if e.Endpoint != "" {
		prefix = fmt.Sprintf("API error %d from %s", e.StatusCode, e.Endpoint)
	}
	if e.Message != "" {
		return prefix + ": " + e.Message
	}
	return prefix
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 400:
		return target == ErrBadRequest
	case 401:
		return target == ErrUnauthorized
	case 404:
		return target == ErrNotFound
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("network error after %d attempts: %v", e.Attempt, e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}
