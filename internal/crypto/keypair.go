package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x25519"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

// randReader is the random source used for keys, salts, and nonces.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func random() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// KeyPair is a long-term X25519 key pair.
type KeyPair struct {
	// PublicKey is the raw 32-byte public key.
	PublicKey []byte
	// PrivateKey is the raw 32-byte private key.
	PrivateKey []byte
}

// GenerateKeyPair creates a new key pair from the package random source.
func GenerateKeyPair() (*KeyPair, error) {
	if err := ready(); err != nil {
		return nil, err
	}

	priv := make([]byte, KeySize)
	if _, err := io.ReadFull(random(), priv); err != nil {
		return nil, fmt.Errorf("read random key: %w", err)
	}
	return &KeyPair{
		PublicKey:  derivePublicKey(priv),
		PrivateKey: priv,
	}, nil
}

// KeyPairFromPrivateKey rebuilds a key pair from the private half.
// The private key is copied.
func KeyPairFromPrivateKey(privateKey []byte) (*KeyPair, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	if len(privateKey) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(privateKey), KeySize)
	}

	priv := make([]byte, KeySize)
	copy(priv, privateKey)
	return &KeyPair{
		PublicKey:  derivePublicKey(priv),
		PrivateKey: priv,
	}, nil
}

// NewKeyPair pairs stored halves and checks that they belong together.
func NewKeyPair(publicKey, privateKey []byte) (*KeyPair, error) {
	kp := &KeyPair{PublicKey: publicKey, PrivateKey: privateKey}
	if err := kp.Validate(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Validate checks sizes and that PublicKey is derived from PrivateKey.
func (k *KeyPair) Validate() error {
	if k == nil {
		return fmt.Errorf("%w: nil key pair", ErrInvalidKeySize)
	}
	if len(k.PublicKey) != KeySize {
		return fmt.Errorf("%w: public key: got %d, want %d", ErrInvalidKeySize, len(k.PublicKey), KeySize)
	}
	if len(k.PrivateKey) != KeySize {
		return fmt.Errorf("%w: private key: got %d, want %d", ErrInvalidKeySize, len(k.PrivateKey), KeySize)
	}
	if subtle.ConstantTimeCompare(derivePublicKey(k.PrivateKey), k.PublicKey) != 1 {
		return ErrKeyMismatch
	}
	return nil
}

// PublicKeyText returns the encoded public key.
func (k *KeyPair) PublicKeyText() string {
	return Encode(k.PublicKey)
}

// Fingerprint returns the fingerprint of the public key.
func (k *KeyPair) Fingerprint() string {
	return Fingerprint(k.PublicKey)
}

// Wipe zeroes the private key in place.
func (k *KeyPair) Wipe() {
	if k != nil {
		zero(k.PrivateKey)
	}
}

// Fingerprint returns a short base58 digest of a public key for people to
// compare out of band.
func Fingerprint(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return base58.Encode(sum[:FingerprintSize])
}

// SafetyWords renders the same digest as Fingerprint as a BIP-39 word
// list, which is easier to read aloud when two people verify a key.
func SafetyWords(publicKey []byte) (string, error) {
	if len(publicKey) != KeySize {
		return "", fmt.Errorf("public key: %w", ErrInvalidKeySize)
	}
	sum := sha256.Sum256(publicKey)
	return bip39.NewMnemonic(sum[:FingerprintSize])
}

func derivePublicKey(priv []byte) []byte {
	var sk, pk x25519.Key
	copy(sk[:], priv)
	x25519.KeyGen(&pk, &sk)
	zero(sk[:])
	return pk[:]
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	zero(b)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
