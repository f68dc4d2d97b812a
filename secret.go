package e2eechat

import (
	"context"
	"errors"
)

// ErrSecretCancelled is returned when a SecretSource yields no secret, for
// example because the user dismissed the prompt.
var ErrSecretCancelled = errors.New("secret entry cancelled")

// SecretSource supplies a passphrase on demand. The client asks for one
// only when an operation needs it and never stores it.
type SecretSource interface {
	ReadSecret(ctx context.Context, prompt string) (string, error)
}

// SecretFunc adapts a function to a SecretSource.
type SecretFunc func(ctx context.Context, prompt string) (string, error)

// ReadSecret implements SecretSource.
func (f SecretFunc) ReadSecret(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// StaticSecret is a SecretSource that always returns the same passphrase.
// It is meant for tests and non-interactive use.
type StaticSecret string

// ReadSecret implements SecretSource.
func (s StaticSecret) ReadSecret(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s), nil
}

const (
	promptBackup  = "Passphrase to protect your private key backup"
	promptRestore = "Passphrase of your private key backup"
)

func readSecret(ctx context.Context, src SecretSource, prompt string) (string, error) {
	if src == nil {
		return "", ErrSecretCancelled
	}
	secret, err := src.ReadSecret(ctx, prompt)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", ErrSecretCancelled
	}
	return secret, nil
}
