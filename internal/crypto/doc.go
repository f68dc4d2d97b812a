// Package crypto provides the cryptographic primitives for end-to-end
// encrypted direct messages. It implements long-term key pairs, an anonymous
// sealed-box message cipher, and passphrase wrapping of private keys for
// backup.
//
// # Algorithm Suite
//
// The package uses the following algorithms:
//
//   - X25519 (RFC 7748): Diffie-Hellman over Curve25519 for long-term and
//     ephemeral key pairs. Both halves are 32 bytes.
//
//   - XSalsa20-Poly1305 (NaCl crypto_box): authenticated encryption of
//     messages under the shared key of an ephemeral sender key and the
//     recipient's long-term key. Nonces are 24 bytes and the ciphertext
//     carries a 16-byte tag.
//
//   - Argon2id v1.3 (RFC 9106): password hashing to derive a 32-byte wrapping
//     key from a passphrase and a 16-byte salt.
//
//   - XChaCha20-Poly1305: authenticated encryption of the private key under
//     the derived wrapping key, with a 24-byte nonce and no associated data.
//
// # Security Model
//
// The message cipher provides:
//
//   - Confidentiality: only the holder of the recipient private key can open
//     a message.
//   - Integrity: any change to ciphertext, nonce, or ephemeral key makes
//     opening fail.
//   - Sender anonymity: the ephemeral key is discarded after sealing, so the
//     sender keeps no ability to decrypt and the recipient learns nothing
//     about who sealed.
//
// Messages are NOT authenticated to a sender. Anyone holding a recipient's
// public key can produce a message that opens correctly. Sender identity
// must come from the transport.
//
// # Initialization
//
// [Init] runs a one-time self-test of the primitives. Every exported
// operation calls it implicitly and fails with [ErrNotInitialized] if the
// self-test fails. Calling it again is a no-op.
//
// # Key Management
//
// Use [GenerateKeyPair] to create a long-term pair and
// [KeyPairFromPrivateKey] to rebuild one after a restore. Private keys
// must never be logged or sent anywhere except inside a [Wrap] blob.
//
// # Base64 Encoding
//
// Every key, nonce, and ciphertext crossing a storage or wire boundary is
// encoded with [Encode] (standard alphabet, padded, RFC 4648 §4). [Decode]
// is strict and rejects anything else with [ErrMalformedEncoding].
package crypto
