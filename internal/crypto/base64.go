package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// encoding is the only base64 variant used for keys, nonces, and ciphertexts.
var encoding = base64.StdEncoding.Strict()

// Encode encodes bytes to standard base64 with padding.
func Encode(data []byte) string {
	return encoding.EncodeToString(data)
}

// Decode decodes standard padded base64. URL-safe characters, missing
// padding, line breaks, and non-zero trailing bits are rejected.
func Decode(s string) ([]byte, error) {
	// encoding/base64 silently skips CR and LF.
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("%w: unexpected line break", ErrMalformedEncoding)
	}
	data, err := encoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return data, nil
}

// DecodeSized decodes s and checks that the result is exactly size bytes.
// field names the value in the returned error.
func DecodeSized(field, s string, size int) ([]byte, error) {
	data, err := Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", field, ErrInvalidSize, len(data), size)
	}
	return data, nil
}
