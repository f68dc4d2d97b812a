// Package keyvault manages the device's long-term key pair in a keystore.
//
// The pair lives in two slots that are always written together. A vault
// never reports a half-present pair as absent: if exactly one slot is set,
// or the halves do not belong together, [ErrCorrupt] is returned so the
// caller can decide whether to regenerate.
package keyvault

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/e2eechat/client-go/internal/crypto"
	"github.com/e2eechat/client-go/internal/keystore"
)

// Slot names. These match the storage keys used by existing clients.
const (
	SlotPublicKey  = "e2ee.publicKey"
	SlotPrivateKey = "e2ee.privateKey"
	SlotBackupBlob = "e2ee.encryptedPrivateKeyBlob"
)

var (
	// ErrNoKey is returned when an operation needs the local private key
	// and none is stored.
	ErrNoKey = errors.New("keyvault: no private key stored")

	// ErrCorrupt is returned when the stored pair is inconsistent.
	ErrCorrupt = errors.New("keyvault: stored key pair is corrupt")

	// ErrKeyReplaced is returned by BackupPrivateKey when the pair was
	// replaced while its private key was being wrapped. Nothing is stored.
	ErrKeyReplaced = errors.New("keyvault: key pair replaced during backup")
)

// CorruptError describes which slot made the stored pair inconsistent.
type CorruptError struct {
	Slot   string
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	msg := fmt.Sprintf("keyvault: stored key pair is corrupt: %s: %s", e.Slot, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCorrupt.
func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// Vault reads and writes the long-term key pair.
type Vault struct {
	store  keystore.Store
	params crypto.KDFParams
	log    *logrus.Entry

	// mu serialises writers. Readers rely on the store's snapshot reads.
	mu sync.Mutex

	// beforeCommit runs between wrapping and storing a backup. Tests use it
	// to replace the pair at that point.
	beforeCommit func()
}

// Option configures a Vault.
type Option func(*Vault)

// WithKDFParams sets the KDF cost used by BackupPrivateKey.
func WithKDFParams(p crypto.KDFParams) Option {
	return func(v *Vault) { v.params = p }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.log = l.WithField("component", "keyvault")
		}
	}
}

// New returns a Vault over store.
func New(store keystore.Store, opts ...Option) *Vault {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	v := &Vault{
		store:  store,
		params: crypto.ModerateKDF,
		log:    discard.WithField("component", "keyvault"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Generate creates a fresh key pair and stores both halves in one atomic
// write, replacing any existing pair. A stored backup belongs to the old
// private key and is removed in the same write.
func (v *Vault) Generate() (*crypto.KeyPair, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generateLocked()
}

func (v *Vault) generateLocked() (*crypto.KeyPair, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := v.putPair(kp, keystore.Deletes(SlotBackupBlob)...); err != nil {
		return nil, err
	}
	v.log.WithField("fingerprint", kp.Fingerprint()).Info("generated long-term key pair")
	return kp, nil
}

// Load returns the stored key pair. The boolean is false when no pair is
// stored at all.
func (v *Vault) Load() (*crypto.KeyPair, bool, error) {
	vals, err := v.store.GetMany(SlotPublicKey, SlotPrivateKey)
	if err != nil {
		return nil, false, err
	}
	pubText, privText := vals[0], vals[1]

	switch {
	case pubText == nil && privText == nil:
		return nil, false, nil
	case pubText == nil:
		return nil, false, &CorruptError{Slot: SlotPublicKey, Reason: "missing while private key is present"}
	case privText == nil:
		return nil, false, &CorruptError{Slot: SlotPrivateKey, Reason: "missing while public key is present"}
	}

	pub, err := crypto.DecodeSized("public key", string(pubText), crypto.KeySize)
	if err != nil {
		return nil, false, &CorruptError{Slot: SlotPublicKey, Reason: "undecodable", Err: err}
	}
	priv, err := crypto.DecodeSized("private key", string(privText), crypto.KeySize)
	if err != nil {
		return nil, false, &CorruptError{Slot: SlotPrivateKey, Reason: "undecodable", Err: err}
	}
	kp, err := crypto.NewKeyPair(pub, priv)
	if err != nil {
		return nil, false, &CorruptError{Slot: SlotPublicKey, Reason: "does not match private key", Err: err}
	}
	return kp, true, nil
}

// EnsureKeyPair loads the stored pair or generates one if none exists. The
// boolean reports whether a pair was generated. A corrupt pair is returned
// as an error rather than silently replaced.
func (v *Vault) EnsureKeyPair() (*crypto.KeyPair, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	kp, ok, err := v.Load()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return kp, false, nil
	}
	kp, err = v.generateLocked()
	if err != nil {
		return nil, false, err
	}
	return kp, true, nil
}

// ExportPublicKey returns the encoded stored public key.
func (v *Vault) ExportPublicKey() (string, bool, error) {
	val, ok, err := v.store.Get(SlotPublicKey)
	if err != nil || !ok {
		return "", false, err
	}
	return string(val), true, nil
}

// BackupPrivateKey wraps the stored private key under passphrase, records
// the blob in the backup slot, and returns it. The KDF runs without holding
// the vault lock; if the pair is replaced meanwhile, ErrKeyReplaced is
// returned and the stale blob is dropped.
func (v *Vault) BackupPrivateKey(passphrase string) (*crypto.EncryptedPrivateKeyBlob, error) {
	kp, ok, err := v.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoKey
	}
	defer kp.Wipe()

	blob, err := crypto.Wrap(passphrase, kp.PrivateKey, v.params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return nil, err
	}

	if v.beforeCommit != nil {
		v.beforeCommit()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	current, ok, err := v.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrKeyReplaced
	}
	same := subtle.ConstantTimeCompare(current.PrivateKey, kp.PrivateKey) == 1
	current.Wipe()
	if !same {
		return nil, ErrKeyReplaced
	}
	if err := v.store.Put(keystore.Entry{Key: SlotBackupBlob, Value: raw}); err != nil {
		return nil, err
	}
	v.log.Info("stored encrypted private key backup")
	return blob, nil
}

// StoredBackup returns the blob recorded by the last BackupPrivateKey.
func (v *Vault) StoredBackup() (*crypto.EncryptedPrivateKeyBlob, bool, error) {
	raw, ok, err := v.store.Get(SlotBackupBlob)
	if err != nil || !ok {
		return nil, false, err
	}
	var blob crypto.EncryptedPrivateKeyBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, false, &CorruptError{Slot: SlotBackupBlob, Reason: "undecodable", Err: err}
	}
	return &blob, true, nil
}

// RestorePrivateKey unwraps blob with passphrase and replaces the stored
// pair with the recovered private key and its derived public key. The blob
// becomes the stored backup in the same write. On any failure the stored
// pair is left untouched.
func (v *Vault) RestorePrivateKey(passphrase string, blob *crypto.EncryptedPrivateKeyBlob) (*crypto.KeyPair, error) {
	priv, err := crypto.Unwrap(passphrase, blob)
	if err != nil {
		return nil, err
	}
	kp, err := crypto.KeyPairFromPrivateKey(priv)
	crypto.Wipe(priv)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.putPair(kp, keystore.Entry{Key: SlotBackupBlob, Value: raw}); err != nil {
		return nil, err
	}
	v.log.WithField("fingerprint", kp.Fingerprint()).Info("restored private key from backup")
	return kp, nil
}

// Open decrypts msg with the stored private key.
func (v *Vault) Open(msg *crypto.EncryptedMessage) (string, error) {
	val, ok, err := v.store.Get(SlotPrivateKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoKey
	}
	priv, err := crypto.DecodeSized("private key", string(val), crypto.KeySize)
	if err != nil {
		return "", &CorruptError{Slot: SlotPrivateKey, Reason: "undecodable", Err: err}
	}
	defer crypto.Wipe(priv)
	return crypto.Open(priv, msg)
}

func (v *Vault) putPair(kp *crypto.KeyPair, extra ...keystore.Entry) error {
	entries := append([]keystore.Entry{
		{Key: SlotPublicKey, Value: []byte(crypto.Encode(kp.PublicKey))},
		{Key: SlotPrivateKey, Value: []byte(crypto.Encode(kp.PrivateKey))},
	}, extra...)
	return v.store.Put(entries...)
}
