package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	large := make([]byte, 10*1024)
	if _, err := rand.Read(large); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"two bytes", []byte{0x42, 0x43}},
		{"three bytes", []byte{0x42, 0x43, 0x44}},
		{"binary mixed", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"chars that map to + and /", []byte{0xfb, 0xff, 0x3f, 0xff}},
		{"10KB random", large},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			decoded, err := Decode(Encode(tt.data))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip failed: got %d bytes, want %d", len(decoded), len(tt.data))
			}
		})
	}
}

func TestEncode_StandardPadded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data     []byte
		expected string
	}{
		{[]byte{}, ""},
		{[]byte("a"), "YQ=="},
		{[]byte("ab"), "YWI="},
		{[]byte("abc"), "YWJj"},
		{[]byte("hello"), "aGVsbG8="},
		{[]byte{0xfb, 0xff}, "+/8="},
	}

	for _, tt := range tests {
		if got := Encode(tt.data); got != tt.expected {
			t.Errorf("Encode(%v) = %q, want %q", tt.data, got, tt.expected)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"invalid chars", "!!!invalid!!!"},
		{"url-safe alphabet", "-_8="},
		{"missing padding", "aGVsbG8"},
		{"non-zero trailing bits", "YR=="},
		{"embedded newline", "aGVs\nbG8="},
		{"embedded space", "aGVs bG8="},
		{"trailing garbage", "aGVsbG8=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.input)
			if !errors.Is(err, ErrMalformedEncoding) {
				t.Errorf("Decode(%q) error = %v, want ErrMalformedEncoding", tt.input, err)
			}
		})
	}
}

func TestDecodeSized(t *testing.T) {
	t.Parallel()

	key := make([]byte, KeySize)

	if _, err := DecodeSized("key", Encode(key), KeySize); err != nil {
		t.Errorf("DecodeSized() with correct size error = %v", err)
	}

	_, err := DecodeSized("key", Encode(key[:31]), KeySize)
	if !errors.Is(err, ErrInvalidSize) {
		t.Errorf("DecodeSized() short error = %v, want ErrInvalidSize", err)
	}

	_, err = DecodeSized("key", "not base64!", KeySize)
	if !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("DecodeSized() malformed error = %v, want ErrMalformedEncoding", err)
	}
}

func BenchmarkEncode(b *testing.B) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 256)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Encode(data)
	}
}

func BenchmarkDecode(b *testing.B) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 256)
	}
	encoded := Encode(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(encoded)
	}
}

// Example_encoding demonstrates the text encoding used for keys and ciphertexts.
func Example_encoding() {
	encoded := Encode([]byte("Hello, World!"))
	fmt.Println(encoded)

	decoded, _ := Decode(encoded)
	fmt.Println(string(decoded))

	_, err := Decode("SGVsbG8sIFdvcmxkIQ")
	fmt.Println(errors.Is(err, ErrMalformedEncoding))

	// Output:
	// SGVsbG8sIFdvcmxkIQ==
	// Hello, World!
	// true
}
