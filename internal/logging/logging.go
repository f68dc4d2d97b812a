// Package logging builds the logrus loggers used across the client.
//
// Every logger returned by [New] carries a [RedactHook] so that fields
// whose names suggest secret material never reach the output, whatever
// the caller passes.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures a logger.
type Options struct {
	// Level is a logrus level name. Defaults to "info".
	Level string
	// Format is "text" or "json". Defaults to "text".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a configured logger.
func New(opts Options) (*logrus.Logger, error) {
	l := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}
	l.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	l.AddHook(RedactHook{})
	return l, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.AddHook(RedactHook{})
	return l
}

const redactedValue = "[REDACTED]"

var sensitiveKeyParts = []string{
	"secret", "passphrase", "password", "private", "token", "authorization",
}

// RedactHook replaces the values of sensitive fields with a placeholder.
type RedactHook struct{}

// Levels implements logrus.Hook.
func (RedactHook) Levels() []logrus.Level { return logrus.AllLevels }

// Fire implements logrus.Hook.
func (RedactHook) Fire(e *logrus.Entry) error {
	for k := range e.Data {
		if IsSensitiveKey(k) {
			e.Data[k] = redactedValue
		}
	}
	return nil
}

// IsSensitiveKey reports whether a field name looks like it holds a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
