package e2eechat

import (
	"errors"
	"fmt"

	"github.com/e2eechat/client-go/internal/api"
	"github.com/e2eechat/client-go/internal/crypto"
	"github.com/e2eechat/client-go/internal/keyvault"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrFormat matches every *FormatError.
	ErrFormat = errors.New("malformed input")

	// ErrNoKey matches every *NoKeyError.
	ErrNoKey = errors.New("no local private key")

	// ErrAuthentication matches every *AuthenticationError.
	ErrAuthentication = errors.New("authentication failed")

	// ErrCorruption matches every *CorruptionError.
	ErrCorruption = errors.New("stored key pair is corrupt")

	// ErrMissingToken is returned by server operations when no bearer token
	// was configured.
	ErrMissingToken = api.ErrMissingToken

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrUnauthorized is returned when the bearer token is invalid or expired.
	ErrUnauthorized = api.ErrUnauthorized

	// ErrBadRequest is returned when the server rejects a request as incomplete.
	ErrBadRequest = api.ErrBadRequest

	// ErrNotFound is returned when an endpoint does not exist.
	ErrNotFound = api.ErrNotFound

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = api.ErrRateLimited

	// ErrUnknownRecipient is returned by Send when the recipient has not
	// registered a public key.
	ErrUnknownRecipient = errors.New("recipient has no registered public key")

	// ErrEmptyMessage is returned by Send for a message that is blank.
	ErrEmptyMessage = errors.New("message is empty")
)

// E2EEError is implemented by all SDK errors.
type E2EEError interface {
	error
	E2EEError() // marker method
}

// FormatError reports input that is not valid in shape: bad base64, wrong
// sizes, invalid UTF-8, or a structurally invalid key blob.
type FormatError struct {
	// Field names the offending input when known.
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid input: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// E2EEError implements the E2EEError interface.
func (e *FormatError) E2EEError() {}

// NoKeyError reports an operation that needs the local private key when
// none is stored.
type NoKeyError struct {
	Op string
}

func (e *NoKeyError) Error() string {
	return fmt.Sprintf("%s: no local private key; run setup or restore a backup", e.Op)
}

// Is implements errors.Is for sentinel error matching.
func (e *NoKeyError) Is(target error) bool { return target == ErrNoKey }

// E2EEError implements the E2EEError interface.
func (e *NoKeyError) E2EEError() {}

// AuthenticationError reports a message or key blob that failed to open.
// A wrong key, a wrong passphrase, and tampering are indistinguishable.
type AuthenticationError struct {
	Op string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed", e.Op)
}

// Is implements errors.Is for sentinel error matching.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// E2EEError implements the E2EEError interface.
func (e *AuthenticationError) E2EEError() {}

// CorruptionError reports local key storage in an inconsistent state, such
// as only one half of the key pair being present. The stored state is left
// as found.
type CorruptionError struct {
	Slot string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("local key storage is corrupt (%s): %v", e.Slot, e.Err)
}

// Unwrap returns the underlying error.
func (e *CorruptionError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *CorruptionError) Is(target error) bool { return target == ErrCorruption }

// E2EEError implements the E2EEError interface.
func (e *CorruptionError) E2EEError() {}

// APIError represents an HTTP error from the message server.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return (&api.APIError{StatusCode: e.StatusCode, Message: e.Message, Endpoint: e.Endpoint}).Error()
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	return (&api.APIError{StatusCode: e.StatusCode}).Is(target)
}

// E2EEError implements the E2EEError interface.
func (e *APIError) E2EEError() {}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return (&api.NetworkError{Err: e.Err, Attempt: e.Attempt}).Error()
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error { return e.Err }

// E2EEError implements the E2EEError interface.
func (e *NetworkError) E2EEError() {}

var formatSentinels = []error{
	crypto.ErrMalformedEncoding,
	crypto.ErrInvalidKeySize,
	crypto.ErrInvalidSize,
	crypto.ErrInvalidPlaintext,
	crypto.ErrKeyMismatch,
	crypto.ErrEmptyPassphrase,
	crypto.ErrUnsupportedAlgorithm,
	crypto.ErrInvalidBlob,
}

// wrapError converts internal errors to public errors so that errors.Is()
// checks work with public sentinel errors. op names the failed operation
// and field the input it was given, if any.
func wrapError(op, field string, err error) error {
	if err == nil {
		return nil
	}

	var pub E2EEError
	if errors.As(err, &pub) {
		return err
	}

	// Corruption first: a corrupt slot also wraps a decode error.
	var corrupt *keyvault.CorruptError
	if errors.As(err, &corrupt) {
		return &CorruptionError{Slot: corrupt.Slot, Err: err}
	}
	if errors.Is(err, keyvault.ErrNoKey) {
		return &NoKeyError{Op: op}
	}
	if errors.Is(err, crypto.ErrAuthenticationFailed) {
		return &AuthenticationError{Op: op}
	}
	for _, s := range formatSentinels {
		if errors.Is(err, s) {
			return &FormatError{Field: field, Err: err}
		}
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Endpoint:   apiErr.Endpoint,
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
