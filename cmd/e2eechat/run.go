package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	e2eechat "github.com/e2eechat/client-go"
	"github.com/e2eechat/client-go/internal/logging"
)

// Config holds the process streams and environment used by run.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
}

// DefaultConfig returns a Config bound to the current process.
func DefaultConfig() Config {
	return Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
}

const usage = `usage: e2eechat [-config file] [-env-file file] <command> [args]

commands:
  init                 create this device's key pair and register it
  whoami               print this device's public key and safety words
  users                list users known to the server
  verify <user>        print a user's safety words
  send <user> <text>   send a message
  read <user>          print the conversation with a user
  watch <user>         stream new messages until interrupted
  backup               print a passphrase-protected backup of the key
  restore [-in file]   restore the key from a backup`

var errUsage = errors.New(usage)

type command func(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error

var commands = map[string]command{
	"init":    cmdInit,
	"whoami":  cmdWhoami,
	"users":   cmdUsers,
	"verify":  cmdVerify,
	"send":    cmdSend,
	"read":    cmdRead,
	"watch":   cmdWatch,
	"backup":  cmdBackup,
	"restore": cmdRestore,
}

func run(ctx context.Context, args []string, cfg Config) error {
	fs := flag.NewFlagSet("e2eechat", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	configPath := fs.String("config", "", "YAML settings file (default $E2EE_CONFIG)")
	envFile := fs.String("env-file", ".env", "dotenv file with E2EE_* variables")
	if len(args) > 0 {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown command: %s\n%s", fs.Arg(0), usage)
	}

	getenv, err := envWithDotenv(*envFile, cfg.Getenv)
	if err != nil {
		return err
	}
	cfg.Getenv = getenv
	settings, err := loadSettings(*configPath, getenv)
	if err != nil {
		return err
	}

	client, err := newClient(settings, cfg.Stderr)
	if err != nil {
		return err
	}
	defer client.Close()

	return cmd(ctx, client, fs.Args()[1:], cfg)
}

func newClient(s Settings, logOut io.Writer) (*e2eechat.Client, error) {
	logger, err := logging.New(logging.Options{Level: s.LogLevel, Format: s.LogFormat, Output: logOut})
	if err != nil {
		return nil, err
	}
	kdf, err := s.kdfParams()
	if err != nil {
		return nil, err
	}

	opts := []e2eechat.Option{
		e2eechat.WithLogger(logger),
		e2eechat.WithDataDir(s.DataDir),
		e2eechat.WithKDFParams(kdf),
	}
	if s.BaseURL != "" {
		opts = append(opts, e2eechat.WithBaseURL(s.BaseURL))
	}
	if s.Token != "" {
		opts = append(opts, e2eechat.WithToken(s.Token))
	}
	if s.Placeholder != "" {
		opts = append(opts, e2eechat.WithPlaceholder(s.Placeholder))
	}
	if s.RateLimit > 0 {
		opts = append(opts, e2eechat.WithRateLimit(s.RateLimit, 1))
	}
	return e2eechat.New(opts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdInit(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	if len(args) != 0 {
		return errUsage
	}
	pub, generated, err := c.EnsureKeyPair()
	if err != nil {
		return err
	}
	_, _, err = c.Setup(ctx)
	registered := err == nil
	if err != nil && !errors.Is(err, e2eechat.ErrMissingToken) {
		return err
	}
	fp, err := c.Fingerprint()
	if err != nil {
		return err
	}
	return printJSON(cfg.Stdout, map[string]any{
		"public_key":  pub,
		"fingerprint": fp,
		"generated":   generated,
		"registered":  registered,
	})
}

func cmdWhoami(_ context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	if len(args) != 0 {
		return errUsage
	}
	pub, ok, err := c.PublicKey()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no key pair on this device; run init or restore")
	}
	fp, err := c.Fingerprint()
	if err != nil {
		return err
	}
	words, err := c.SafetyWords("")
	if err != nil {
		return err
	}
	return printJSON(cfg.Stdout, map[string]string{
		"public_key":   pub,
		"fingerprint":  fp,
		"safety_words": words,
	})
}

type userOutput struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
	HasKey    bool   `json:"has_key"`
}

func cmdUsers(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	if len(args) != 0 {
		return errUsage
	}
	users, err := c.Users(ctx)
	if err != nil {
		return err
	}
	out := make([]userOutput, len(users))
	for i, u := range users {
		out[i] = userOutput{ID: u.ID, Email: u.Email, PublicKey: u.PublicKey, HasKey: u.HasKey()}
	}
	return printJSON(cfg.Stdout, out)
}

func cmdVerify(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	if len(args) != 1 {
		return errUsage
	}
	users, err := c.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID != args[0] {
			continue
		}
		if !u.HasKey() {
			return fmt.Errorf("%s: %w", u.ID, e2eechat.ErrUnknownRecipient)
		}
		words, err := c.SafetyWords(u.PublicKey)
		if err != nil {
			return err
		}
		return printJSON(cfg.Stdout, map[string]string{
			"user_id":      u.ID,
			"safety_words": words,
		})
	}
	return fmt.Errorf("%s: %w", args[0], e2eechat.ErrUnknownRecipient)
}

func cmdSend(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	if len(args) < 2 {
		return errUsage
	}
	if err := c.Send(ctx, args[0], "", strings.Join(args[1:], " ")); err != nil {
		return err
	}
	return printJSON(cfg.Stdout, map[string]bool{"sent": true})
}

type messageOutput struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
	Text        string    `json:"text"`
	Decrypted   bool      `json:"decrypted"`
}

func toOutput(m e2eechat.Message) messageOutput {
	return messageOutput{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		CreatedAt:   m.CreatedAt,
		Text:        m.Text,
		Decrypted:   m.Decrypted,
	}
}

func parseConversationArgs(name string, args []string, stderr io.Writer) (string, time.Time, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	since := fs.String("since", "", "only messages created at or after this RFC 3339 time")
	if err := fs.Parse(args); err != nil {
		return "", time.Time{}, err
	}
	if fs.NArg() != 1 {
		return "", time.Time{}, errUsage
	}
	var t time.Time
	if *since != "" {
		parsed, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("invalid -since: %w", err)
		}
		t = parsed
	}
	return fs.Arg(0), t, nil
}

func cmdRead(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	partner, since, err := parseConversationArgs("read", args, cfg.Stderr)
	if err != nil {
		return err
	}
	msgs, err := c.Conversation(ctx, partner, since)
	if err != nil {
		return err
	}
	out := make([]messageOutput, len(msgs))
	for i, m := range msgs {
		out[i] = toOutput(m)
	}
	return printJSON(cfg.Stdout, out)
}

func cmdWatch(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	partner, since, err := parseConversationArgs("watch", args, cfg.Stderr)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cfg.Stdout)
	err = c.Watch(ctx, partner, since, func(m e2eechat.Message) {
		_ = enc.Encode(toOutput(m))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func cmdBackup(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	if len(args) != 0 {
		return errUsage
	}
	b, err := c.BackupPrivateKey(ctx, passphraseSource(cfg))
	if err != nil {
		return err
	}
	if !b.Uploaded {
		fmt.Fprintln(cfg.Stderr, "backup stored on this device only; set a token to upload it")
	}
	_, err = fmt.Fprintln(cfg.Stdout, b.Encoded)
	return err
}

func cmdRestore(ctx context.Context, c *e2eechat.Client, args []string, cfg Config) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	in := fs.String("in", "", `backup file, or "-" for stdin (default: the backup stored on this device)`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	var encoded string
	switch *in {
	case "":
	case "-":
		data, err := io.ReadAll(cfg.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		encoded = strings.TrimSpace(string(data))
	default:
		data, err := os.ReadFile(*in)
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		encoded = strings.TrimSpace(string(data))
	}

	if err := c.RestorePrivateKey(ctx, passphraseSource(cfg), encoded); err != nil {
		return err
	}
	pub, _, err := c.PublicKey()
	if err != nil {
		return err
	}
	return printJSON(cfg.Stdout, map[string]any{
		"restored":   true,
		"public_key": pub,
	})
}
