package e2eechat

import (
	"context"
	"errors"

	"github.com/e2eechat/client-go/internal/api"
	"github.com/e2eechat/client-go/internal/crypto"
)

// Backup is a passphrase-wrapped copy of the device's private key.
type Backup struct {
	// Encoded is the portable text form, accepted by RestorePrivateKey on
	// any device.
	Encoded string
	// Algorithm identifies the wrapping scheme.
	Algorithm string
	// KDF is the passphrase KDF cost the backup was made with.
	KDF KDFParams
	// Uploaded reports whether the server now holds this backup.
	Uploaded bool
}

func newBackup(blob *crypto.EncryptedPrivateKeyBlob) (*Backup, error) {
	text, err := blob.MarshalText()
	if err != nil {
		return nil, err
	}
	return &Backup{
		Encoded:   string(text),
		Algorithm: blob.Algorithm,
		KDF:       blob.Params(),
	}, nil
}

// BackupPrivateKey wraps the device's private key under a passphrase read
// from secrets. The backup is stored locally and, when a token is
// configured, uploaded with the public key. A fresh salt and nonce are used
// every time.
func (c *Client) BackupPrivateKey(ctx context.Context, secrets SecretSource) (b *Backup, err error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	defer func() {
		c.metrics.backups.WithLabelValues(opBackup, resultLabel(err)).Inc()
	}()

	// Fail before prompting if there is nothing to back up.
	kp, ok, err := c.vault.Load()
	if err != nil {
		return nil, wrapError("backup", "", err)
	}
	if !ok {
		return nil, &NoKeyError{Op: "backup"}
	}
	pub := kp.PublicKeyText()
	kp.Wipe()

	passphrase, err := readSecret(ctx, secrets, promptBackup)
	if err != nil {
		return nil, err
	}
	blob, err := c.vault.BackupPrivateKey(passphrase)
	if err != nil {
		return nil, wrapError("backup", "passphrase", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err = newBackup(blob)
	if err != nil {
		return nil, err
	}

	srv, err := c.server()
	if errors.Is(err, ErrMissingToken) {
		c.log.Info("stored private key backup locally; no token to upload it")
		return b, nil
	}
	if err != nil {
		return nil, err
	}
	err = srv.RegisterKey(ctx, api.RegisterKeyRequest{PublicKey: pub, EncryptedPrivateKey: b.Encoded})
	if err != nil {
		return nil, wrapError("backup", "", err)
	}
	b.Uploaded = true
	c.log.Info("uploaded private key backup")
	return b, nil
}

// RestorePrivateKey replaces the device's key pair with the one in encoded,
// unwrapped with a passphrase read from secrets. An empty encoded restores
// the backup stored on this device. A wrong passphrase and a tampered
// backup both fail with *AuthenticationError and leave the stored pair as
// it was. When a token is configured the restored public key is registered
// again.
func (c *Client) RestorePrivateKey(ctx context.Context, secrets SecretSource, encoded string) (err error) {
	if err := c.checkClosed(); err != nil {
		return err
	}
	defer func() {
		c.metrics.backups.WithLabelValues(opRestore, resultLabel(err)).Inc()
	}()

	var blob *crypto.EncryptedPrivateKeyBlob
	if encoded == "" {
		stored, ok, err := c.vault.StoredBackup()
		if err != nil {
			return wrapError("restore", "backup", err)
		}
		if !ok {
			return &FormatError{Field: "backup", Err: errors.New("no backup given and none stored on this device")}
		}
		blob = stored
	} else {
		parsed, err := crypto.ParseBlobText(encoded)
		if err != nil {
			return wrapError("restore", "backup", err)
		}
		blob = parsed
	}

	passphrase, err := readSecret(ctx, secrets, promptRestore)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	kp, err := c.vault.RestorePrivateKey(passphrase, blob)
	if err != nil {
		return wrapError("restore", "backup", err)
	}
	defer kp.Wipe()

	srv, err := c.server()
	if errors.Is(err, ErrMissingToken) {
		return nil
	}
	if err != nil {
		return err
	}
	text, err := blob.MarshalText()
	if err != nil {
		return err
	}
	err = srv.RegisterKey(ctx, api.RegisterKeyRequest{PublicKey: kp.PublicKeyText(), EncryptedPrivateKey: string(text)})
	return wrapError("restore", "", err)
}
