package crypto

import "errors"

var (
	// ErrMalformedEncoding is returned when a value is not valid padded
	// standard base64.
	ErrMalformedEncoding = errors.New("malformed base64 encoding")

	// ErrInvalidKeySize is returned when a key is not 32 bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidSize is returned when a decoded field has an incorrect size.
	ErrInvalidSize = errors.New("invalid size")

	// ErrInvalidPlaintext is returned when a message is not valid UTF-8.
	ErrInvalidPlaintext = errors.New("plaintext is not valid UTF-8")

	// ErrAuthenticationFailed is returned when a box or wrapped key fails to
	// open. Wrong keys, wrong passphrases, and tampering are not distinguished.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrKeyMismatch is returned when a public key is not the counterpart of
	// the private key it is paired with.
	ErrKeyMismatch = errors.New("public key does not match private key")

	// ErrEmptyPassphrase is returned when wrapping with an empty passphrase.
	ErrEmptyPassphrase = errors.New("passphrase is empty")

	// ErrUnsupportedAlgorithm is returned for a blob with an unknown algo.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrInvalidBlob is returned when a wrapped key blob is structurally
	// invalid: bad JSON, missing fields, or out-of-range KDF parameters.
	ErrInvalidBlob = errors.New("invalid encrypted key blob")

	// ErrNotInitialized is returned when the primitive self-test failed.
	ErrNotInitialized = errors.New("crypto not initialized")
)
