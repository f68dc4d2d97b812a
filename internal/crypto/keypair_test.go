package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateKeyPair(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if len(kp.PublicKey) != KeySize {
		t.Errorf("PublicKey size = %d, want %d", len(kp.PublicKey), KeySize)
	}
	if len(kp.PrivateKey) != KeySize {
		t.Errorf("PrivateKey size = %d, want %d", len(kp.PrivateKey), KeySize)
	}
	if err := kp.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	decoded, err := Decode(kp.PublicKeyText())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(decoded, kp.PublicKey) {
		t.Error("PublicKeyText does not decode to PublicKey")
	}
}

func TestGenerateKeyPair_Uniqueness(t *testing.T) {
	t.Parallel()

	kp1, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	kp2, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if bytes.Equal(kp1.PublicKey, kp2.PublicKey) {
		t.Error("generated key pairs have identical public keys")
	}
	if bytes.Equal(kp1.PrivateKey, kp2.PrivateKey) {
		t.Error("generated key pairs have identical private keys")
	}
}

func TestGenerateKeyPair_DeterministicReader(t *testing.T) {
	seed := bytes.Repeat([]byte{0x5a}, KeySize)

	restore := SetRandReaderForTesting(bytes.NewReader(seed))
	kp1, err := GenerateKeyPair()
	restore()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	restore = SetRandReaderForTesting(bytes.NewReader(seed))
	kp2, err := GenerateKeyPair()
	restore()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if !bytes.Equal(kp1.PublicKey, kp2.PublicKey) {
		t.Error("same seed produced different public keys")
	}
	if !bytes.Equal(kp1.PrivateKey, seed) {
		t.Error("private key is not the bytes read from the random source")
	}
}

func TestGenerateKeyPair_RandomFailure(t *testing.T) {
	restore := SetRandReaderForTesting(failingReader{})
	defer restore()

	if _, err := GenerateKeyPair(); err == nil {
		t.Error("GenerateKeyPair() should fail when the random source fails")
	}
}

func TestKeyPairFromPrivateKey(t *testing.T) {
	t.Parallel()

	original, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	rebuilt, err := KeyPairFromPrivateKey(original.PrivateKey)
	if err != nil {
		t.Fatalf("KeyPairFromPrivateKey() error = %v", err)
	}
	if !bytes.Equal(rebuilt.PublicKey, original.PublicKey) {
		t.Error("rebuilt public key does not match original")
	}

	rebuilt.PrivateKey[0] ^= 0xff
	if original.PrivateKey[0] == rebuilt.PrivateKey[0] {
		t.Error("KeyPairFromPrivateKey() should copy the private key")
	}
}

func TestKeyPairFromPrivateKey_InvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 31, 33, 64} {
		_, err := KeyPairFromPrivateKey(make([]byte, size))
		if !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("KeyPairFromPrivateKey(%d bytes) error = %v, want ErrInvalidKeySize", size, err)
		}
	}
}

func TestNewKeyPair(t *testing.T) {
	t.Parallel()

	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	tests := []struct {
		name    string
		pub     []byte
		priv    []byte
		wantErr error
	}{
		{"matching", a.PublicKey, a.PrivateKey, nil},
		{"mismatched halves", b.PublicKey, a.PrivateKey, ErrKeyMismatch},
		{"short public", a.PublicKey[:16], a.PrivateKey, ErrInvalidKeySize},
		{"short private", a.PublicKey, a.PrivateKey[:16], ErrInvalidKeySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyPair(tt.pub, tt.priv)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("NewKeyPair() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewKeyPair() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestKeyPair_ValidateNil(t *testing.T) {
	t.Parallel()

	var kp *KeyPair
	if err := kp.Validate(); err == nil {
		t.Error("Validate() on nil key pair should fail")
	}
}

func TestKeyPair_Wipe(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	kp.Wipe()
	if !bytes.Equal(kp.PrivateKey, make([]byte, KeySize)) {
		t.Error("Wipe() did not zero the private key")
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()

	if a.Fingerprint() == "" {
		t.Fatal("Fingerprint() is empty")
	}
	if a.Fingerprint() != Fingerprint(a.PublicKey) {
		t.Error("Fingerprint() is not stable")
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different keys have the same fingerprint")
	}
}

func TestSafetyWords(t *testing.T) {
	t.Parallel()

	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()

	wa, err := SafetyWords(a.PublicKey)
	if err != nil {
		t.Fatalf("SafetyWords() error = %v", err)
	}
	if n := len(strings.Fields(wa)); n != 15 {
		t.Errorf("SafetyWords() has %d words, want 15", n)
	}
	again, _ := SafetyWords(a.PublicKey)
	if again != wa {
		t.Error("SafetyWords() is not stable")
	}
	wb, _ := SafetyWords(b.PublicKey)
	if wa == wb {
		t.Error("different keys have the same safety words")
	}

	if _, err := SafetyWords(a.PublicKey[:8]); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("short key error = %v, want ErrInvalidKeySize", err)
	}
}

func BenchmarkGenerateKeyPair(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GenerateKeyPair()
	}
}
