package crypto

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/nacl/box"
)

// EncryptedMessage is a sealed message as stored and transported. All
// fields are encoded with [Encode].
type EncryptedMessage struct {
	Ciphertext         string `json:"ciphertext"`
	Nonce              string `json:"nonce"`
	EphemeralPublicKey string `json:"ephemeralPublicKey"`
}

// Seal encrypts plaintext to the recipient's long-term public key under a
// fresh ephemeral key pair and a fresh random nonce. The ephemeral private
// key is wiped before returning; the sender cannot open the result.
func Seal(recipientPublicKey []byte, plaintext string) (*EncryptedMessage, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	if len(recipientPublicKey) != KeySize {
		return nil, fmt.Errorf("recipient public key: %w: got %d, want %d",
			ErrInvalidKeySize, len(recipientPublicKey), KeySize)
	}
	if !utf8.ValidString(plaintext) {
		return nil, ErrInvalidPlaintext
	}

	var peer [KeySize]byte
	copy(peer[:], recipientPublicKey)

	ephPub, ephPriv, err := box.GenerateKey(random())
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	defer zero(ephPriv[:])

	var nonce [BoxNonceSize]byte
	if _, err := io.ReadFull(random(), nonce[:]); err != nil {
		return nil, fmt.Errorf("read random nonce: %w", err)
	}

	ct := box.Seal(nil, []byte(plaintext), &nonce, &peer, ephPriv)

	return &EncryptedMessage{
		Ciphertext:         Encode(ct),
		Nonce:              Encode(nonce[:]),
		EphemeralPublicKey: Encode(ephPub[:]),
	}, nil
}

// SealText is [Seal] with an encoded recipient public key.
func SealText(recipientPublicKey, plaintext string) (*EncryptedMessage, error) {
	pub, err := DecodeSized("recipient public key", recipientPublicKey, KeySize)
	if err != nil {
		return nil, err
	}
	return Seal(pub, plaintext)
}

// Open decrypts msg with the local long-term private key. Malformed base64
// in any field yields [ErrMalformedEncoding]; every other failure yields
// [ErrAuthenticationFailed].
func Open(privateKey []byte, msg *EncryptedMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("%w: nil message", ErrInvalidSize)
	}
	ct, err := Decode(msg.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext: %w", err)
	}
	nonce, err := Decode(msg.Nonce)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	eph, err := Decode(msg.EphemeralPublicKey)
	if err != nil {
		return "", fmt.Errorf("ephemeral public key: %w", err)
	}
	return OpenRaw(privateKey, eph, nonce, ct)
}

// OpenRaw decrypts raw box parts. Wrong lengths of the ephemeral key, nonce,
// or ciphertext are reported as [ErrAuthenticationFailed], the same as a
// bad tag. Invalid UTF-8 in the plaintext is replaced with U+FFFD.
func OpenRaw(privateKey, ephemeralPublicKey, nonce, ciphertext []byte) (string, error) {
	if err := ready(); err != nil {
		return "", err
	}
	if len(privateKey) != KeySize {
		return "", fmt.Errorf("private key: %w: got %d, want %d", ErrInvalidKeySize, len(privateKey), KeySize)
	}
	if len(ephemeralPublicKey) != KeySize || len(nonce) != BoxNonceSize || len(ciphertext) < BoxOverhead {
		return "", ErrAuthenticationFailed
	}

	var priv, peer [KeySize]byte
	var n [BoxNonceSize]byte
	copy(priv[:], privateKey)
	copy(peer[:], ephemeralPublicKey)
	copy(n[:], nonce)
	defer zero(priv[:])

	pt, ok := box.Open(nil, ciphertext, &n, &peer, &priv)
	if !ok {
		return "", ErrAuthenticationFailed
	}
	return strings.ToValidUTF8(string(pt), "\uFFFD"), nil
}
