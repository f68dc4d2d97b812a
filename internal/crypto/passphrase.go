package crypto

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KDFParams are the Argon2id cost parameters used to derive a wrapping key.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// Validate checks the parameters against the accepted bounds.
func (p KDFParams) Validate() error {
	switch {
	case p.Time == 0 || p.Time > maxKDFTime:
		return fmt.Errorf("%w: kdf time %d out of range", ErrInvalidBlob, p.Time)
	case p.MemoryKiB < 8*uint32(max(p.Threads, 1)) || p.MemoryKiB > maxKDFMemoryKiB:
		return fmt.Errorf("%w: kdf memory %d KiB out of range", ErrInvalidBlob, p.MemoryKiB)
	case p.Threads == 0 || p.Threads > maxKDFThreads:
		return fmt.Errorf("%w: kdf threads %d out of range", ErrInvalidBlob, p.Threads)
	}
	return nil
}

// EncryptedPrivateKeyBlob is a private key wrapped under a passphrase.
// Salt, Nonce, and Ciphertext are encoded with [Encode]. The KDF fields are
// only set when the blob was made with parameters other than [ModerateKDF].
type EncryptedPrivateKeyBlob struct {
	Algorithm   string `json:"algo"`
	Salt        string `json:"salt"`
	Nonce       string `json:"nonce"`
	Ciphertext  string `json:"ciphertext"`
	KDFTime     uint32 `json:"kdf_time,omitempty"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb,omitempty"`
	KDFThreads  uint8  `json:"kdf_threads,omitempty"`
}

// Params returns the KDF parameters the blob was made with.
func (b *EncryptedPrivateKeyBlob) Params() KDFParams {
	if b.KDFTime == 0 && b.KDFMemoryKB == 0 && b.KDFThreads == 0 {
		return ModerateKDF
	}
	return KDFParams{Time: b.KDFTime, MemoryKiB: b.KDFMemoryKB, Threads: b.KDFThreads}
}

// blobJSON has the blob's fields without its methods.
type blobJSON EncryptedPrivateKeyBlob

// MarshalJSON encodes the blob's JSON form.
func (b EncryptedPrivateKeyBlob) MarshalJSON() ([]byte, error) {
	return json.Marshal(blobJSON(b))
}

// UnmarshalJSON decodes the JSON form and checks that required fields are set.
func (b *EncryptedPrivateKeyBlob) UnmarshalJSON(data []byte) error {
	var p blobJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	if p.Algorithm == "" || p.Salt == "" || p.Nonce == "" || p.Ciphertext == "" {
		return fmt.Errorf("%w: missing field", ErrInvalidBlob)
	}
	*b = EncryptedPrivateKeyBlob(p)
	return nil
}

// MarshalText encodes the blob as base64 of its JSON form, the text handed
// to the remote key registry.
func (b EncryptedPrivateKeyBlob) MarshalText() ([]byte, error) {
	raw, err := b.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return []byte(Encode(raw)), nil
}

// UnmarshalText is the inverse of MarshalText.
func (b *EncryptedPrivateKeyBlob) UnmarshalText(text []byte) error {
	raw, err := Decode(string(text))
	if err != nil {
		return err
	}
	return b.UnmarshalJSON(raw)
}

// ParseBlobText decodes the registry text form of a blob.
func ParseBlobText(text string) (*EncryptedPrivateKeyBlob, error) {
	var b EncryptedPrivateKeyBlob
	if err := b.UnmarshalText([]byte(text)); err != nil {
		return nil, err
	}
	return &b, nil
}

// Wrap encrypts privateKey under a key derived from passphrase. Every call
// uses a fresh salt and nonce, so wrapping the same key twice gives
// unrelated blobs.
func Wrap(passphrase string, privateKey []byte, params KDFParams) (*EncryptedPrivateKeyBlob, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(privateKey) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(privateKey), KeySize)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(random(), salt); err != nil {
		return nil, fmt.Errorf("read random salt: %w", err)
	}
	nonce := make([]byte, WrapNonceSize)
	if _, err := io.ReadFull(random(), nonce); err != nil {
		return nil, fmt.Errorf("read random nonce: %w", err)
	}

	key := deriveWrapKey(passphrase, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, privateKey, nil)

	blob := &EncryptedPrivateKeyBlob{
		Algorithm:  WrapAlgorithm,
		Salt:       Encode(salt),
		Nonce:      Encode(nonce),
		Ciphertext: Encode(ct),
	}
	if params != ModerateKDF {
		blob.KDFTime = params.Time
		blob.KDFMemoryKB = params.MemoryKiB
		blob.KDFThreads = params.Threads
	}
	return blob, nil
}

// Unwrap re-derives the wrapping key from passphrase and the blob's salt and
// opens the private key. A wrong passphrase and a tampered blob both yield
// [ErrAuthenticationFailed].
func Unwrap(passphrase string, blob *EncryptedPrivateKeyBlob) ([]byte, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, fmt.Errorf("%w: nil blob", ErrInvalidBlob)
	}
	if blob.Algorithm != WrapAlgorithm {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, blob.Algorithm)
	}
	params := blob.Params()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	salt, err := DecodeSized("salt", blob.Salt, SaltSize)
	if err != nil {
		return nil, err
	}
	nonce, err := DecodeSized("nonce", blob.Nonce, WrapNonceSize)
	if err != nil {
		return nil, err
	}
	ct, err := Decode(blob.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("ciphertext: %w", err)
	}

	key := deriveWrapKey(passphrase, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if len(pt) != KeySize {
		zero(pt)
		return nil, fmt.Errorf("%w: wrapped key is %d bytes", ErrInvalidBlob, len(pt))
	}
	return pt, nil
}

func deriveWrapKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKiB, p.Threads, WrapKeySize)
}
