package apierrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "status code only",
			err:      &APIError{StatusCode: 500},
			expected: "API error 500",
		},
		{
			name:     "with message",
			err:      &APIError{StatusCode: 400, Message: "publicKey is required"},
			expected: "API error 400: publicKey is required",
		},
		{
			name:     "with endpoint",
			err:      &APIError{StatusCode: 401, Message: "Unauthorized", Endpoint: "get-users"},
			expected: "API error 401 from get-users: Unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		target     error
		expected   bool
	}{
		{"400 matches ErrBadRequest", 400, ErrBadRequest, true},
		{"401 matches ErrUnauthorized", 401, ErrUnauthorized, true},
		{"404 matches ErrNotFound", 404, ErrNotFound, true},
		{"429 matches ErrRateLimited", 429, ErrRateLimited, true},
		{"500 does not match ErrUnauthorized", 500, ErrUnauthorized, false},
		{"401 does not match ErrRateLimited", 401, ErrRateLimited, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &APIError{StatusCode: tt.statusCode})
			if got := errors.Is(err, tt.target); got != tt.expected {
				t.Errorf("errors.Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &NetworkError{Err: inner, URL: "http://localhost", Attempt: 4}

	if !errors.Is(err, inner) {
		t.Error("NetworkError should unwrap to the underlying error")
	}
	if got, want := err.Error(), "network error after 4 attempts: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := (&NetworkError{Err: inner}).Error(), "network error: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
