package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	e2eechat "github.com/e2eechat/client-go"
)

var errNoTerminal = errors.New("no passphrase: set E2EE_PASSPHRASE or run on a terminal")

// passphraseSource reads E2EE_PASSPHRASE, falling back to a hidden prompt
// when stdin is a terminal.
func passphraseSource(cfg Config) e2eechat.SecretSource {
	return e2eechat.SecretFunc(func(ctx context.Context, prompt string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if p := cfg.Getenv("E2EE_PASSPHRASE"); p != "" {
			return p, nil
		}
		f, ok := cfg.Stdin.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return "", errNoTerminal
		}
		fmt.Fprintf(cfg.Stderr, "%s: ", prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cfg.Stderr)
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return string(secret), nil
	})
}
