package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/e2eechat/client-go/internal/api"
)

// ErrAlreadyStarted is returned by Start on a poller that is running.
var ErrAlreadyStarted = errors.New("delivery: already started")

// Fetcher reads a conversation. *api.Client implements it.
type Fetcher interface {
	GetMessages(ctx context.Context, with string, since time.Time) ([]api.MessageRow, error)
}

// Conversation identifies a conversation to watch and where to resume it.
type Conversation struct {
	// PartnerID is the other participant's user id.
	PartnerID string

	// Since skips messages created before it. Zero means the whole history.
	Since time.Time
}

// Handler is invoked once for every message row not seen before, in the
// order the server returned them. An error is logged and does not stop
// delivery.
type Handler func(ctx context.Context, partnerID string, row api.MessageRow) error

// Config configures a Poller.
type Config struct {
	// Fetcher reads messages from the server.
	Fetcher Fetcher

	// Interval is the starting interval between polls of one conversation.
	// If zero, defaults to DefaultInterval.
	Interval time.Duration

	// MaxBackoff caps the interval after consecutive quiet or failed polls.
	// If zero, defaults to DefaultMaxBackoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the factor applied to the interval after a poll
	// that delivered nothing. If zero, defaults to DefaultBackoffMultiplier.
	BackoffMultiplier float64

	// JitterFactor is the maximum random jitter added to each wait as a
	// fraction of the interval. If zero, defaults to DefaultJitterFactor.
	// Negative disables jitter.
	JitterFactor float64

	// Logger defaults to a discarding logger.
	Logger *logrus.Logger
}

// Default polling configuration values.
const (
	DefaultInterval          = 4 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 1.5
	DefaultJitterFactor      = 0.3
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.Interval {
		c.MaxBackoff = c.Interval
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.JitterFactor == 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	return c
}
