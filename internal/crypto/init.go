package crypto

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init runs the one-time self-test of the primitives. It is safe to call
// from many goroutines; only the first call does any work, and every call
// returns the same result.
func Init() error {
	initOnce.Do(func() {
		initErr = selfTest()
	})
	return initErr
}

func ready() error {
	if err := Init(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	return nil
}

func selfTest() error {
	var sample [16]byte
	if _, err := rand.Read(sample[:]); err != nil {
		return fmt.Errorf("system random source: %w", err)
	}

	var a, b [KeySize]byte
	for i := range a {
		a[i] = byte(i + 1)
		b[i] = byte(0xff - i)
	}

	// Two independent X25519 implementations must agree.
	aPub := derivePublicKey(a[:])
	ref, err := curve25519.X25519(a[:], curve25519.Basepoint)
	if err != nil {
		return fmt.Errorf("x25519: %w", err)
	}
	if !bytes.Equal(aPub, ref) {
		return fmt.Errorf("x25519: base point multiplication mismatch")
	}

	var aPubArr, bPubArr [KeySize]byte
	copy(aPubArr[:], aPub)
	copy(bPubArr[:], derivePublicKey(b[:]))

	var nonce [BoxNonceSize]byte
	msg := []byte("self-test")
	sealed := box.Seal(nil, msg, &nonce, &bPubArr, &a)
	if len(sealed) != len(msg)+BoxOverhead {
		return fmt.Errorf("box: unexpected ciphertext length %d", len(sealed))
	}
	opened, ok := box.Open(nil, sealed, &nonce, &aPubArr, &b)
	if !ok || !bytes.Equal(opened, msg) {
		return fmt.Errorf("box: round trip failed")
	}
	sealed[0] ^= 1
	if _, ok := box.Open(nil, sealed, &nonce, &aPubArr, &b); ok {
		return fmt.Errorf("box: tampered ciphertext accepted")
	}

	aead, err := chacha20poly1305.NewX(a[:])
	if err != nil {
		return fmt.Errorf("xchacha20poly1305: %w", err)
	}
	wnonce := make([]byte, WrapNonceSize)
	ct := aead.Seal(nil, wnonce, msg, nil)
	if pt, err := aead.Open(nil, wnonce, ct, nil); err != nil || !bytes.Equal(pt, msg) {
		return fmt.Errorf("xchacha20poly1305: round trip failed")
	}
	return nil
}
