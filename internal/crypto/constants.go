package crypto

const (
	// KeySize is the size of an X25519 public or private key in bytes.
	KeySize = 32

	// BoxNonceSize is the size of a crypto_box nonce in bytes.
	BoxNonceSize = 24
	// BoxOverhead is the size of the Poly1305 tag prepended to box ciphertexts.
	BoxOverhead = 16

	// SaltSize is the size of the Argon2id salt in bytes.
	SaltSize = 16
	// WrapKeySize is the size of the derived wrapping key in bytes.
	WrapKeySize = 32
	// WrapNonceSize is the size of an XChaCha20-Poly1305 nonce in bytes.
	WrapNonceSize = 24
	// WrapOverhead is the size of the XChaCha20-Poly1305 tag in bytes.
	WrapOverhead = 16

	// WrapAlgorithm identifies the passphrase wrapping scheme in a blob.
	WrapAlgorithm = "xchacha20poly1305+pw"

	// FingerprintSize is the number of SHA-256 bytes kept in a fingerprint.
	FingerprintSize = 20
)

// Upper bounds accepted for KDF parameters read from a blob. A blob asking
// for more is treated as malformed rather than run.
const (
	maxKDFTime      = 16
	maxKDFMemoryKiB = 4 * 1024 * 1024
	maxKDFThreads   = 64
)

// ModerateKDF matches libsodium's OPSLIMIT_MODERATE and MEMLIMIT_MODERATE
// and is the default for new blobs. Blobs without explicit parameters are
// read with these values.
var ModerateKDF = KDFParams{Time: 3, MemoryKiB: 256 * 1024, Threads: 1}

// InteractiveKDF matches libsodium's interactive limits.
var InteractiveKDF = KDFParams{Time: 2, MemoryKiB: 64 * 1024, Threads: 1}
