package delivery

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/e2eechat/client-go/internal/api"
)

// Poller delivers new messages of one or more conversations by polling.
// Each conversation keeps its own interval, which backs off while nothing
// arrives and resets when a message is delivered.
type Poller struct {
	cfg Config
	log *logrus.Entry

	mu            sync.Mutex
	conversations map[string]*polledConversation
	handler       Handler
	cancel        context.CancelFunc
	done          chan struct{}
}

type polledConversation struct {
	partnerID string
	since     time.Time
	// seen maps delivered ids to their creation time. Rows older than since
	// are skipped before this lookup, so such entries are pruned.
	seen     map[api.ID]time.Time
	interval time.Duration
	next     time.Time
}

// NewPoller creates a poller. It does nothing until Start.
func NewPoller(cfg Config) *Poller {
	cfg = cfg.withDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Poller{
		cfg:           cfg,
		log:           logger.WithField("component", "delivery"),
		conversations: make(map[string]*polledConversation),
	}
}

// Start begins polling the given conversations. The first poll of each
// conversation happens immediately. Start returns once the poll loop is
// running; delivery is asynchronous.
func (p *Poller) Start(ctx context.Context, conversations []Conversation, handler Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	p.handler = handler
	for _, c := range conversations {
		p.conversations[c.PartnerID] = p.newConversation(c)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.pollLoop(ctx, p.done)
	return nil
}

// Stop halts polling and waits for an in-flight handler call to return.
// After Stop returns no more messages are delivered. Stop is idempotent.
func (p *Poller) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (p *Poller) newConversation(c Conversation) *polledConversation {
	return &polledConversation{
		partnerID: c.PartnerID,
		since:     c.Since,
		seen:      make(map[api.ID]time.Time),
		interval:  p.cfg.Interval,
	}
}

func (p *Poller) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		wait := p.pollDue(ctx)
		if ctx.Err() != nil {
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pollDue polls every conversation whose next poll time has passed and
// returns how long to sleep until the next one is due.
func (p *Poller) pollDue(ctx context.Context) time.Duration {
	now := time.Now()

	p.mu.Lock()
	due := make([]*polledConversation, 0, len(p.conversations))
	for _, c := range p.conversations {
		if !c.next.After(now) {
			due = append(due, c)
		}
	}
	handler := p.handler
	p.mu.Unlock()

	for _, c := range due {
		if ctx.Err() != nil {
			return 0
		}
		p.pollConversation(ctx, c, handler)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	wait := p.cfg.MaxBackoff
	now = time.Now()
	for _, c := range p.conversations {
		if d := c.next.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (p *Poller) pollConversation(ctx context.Context, c *polledConversation, handler Handler) {
	log := p.log.WithField("partner", c.partnerID)
	delivered := 0

	rows, err := p.cfg.Fetcher.GetMessages(ctx, c.partnerID, c.since)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("poll failed")
		}
	} else {
		// Servers may ignore since and return the whole history.
		for _, row := range rows {
			if row.CreatedAt.Before(c.since) {
				continue
			}
			if _, ok := c.seen[row.ID]; ok {
				continue
			}
			c.seen[row.ID] = row.CreatedAt
			if row.CreatedAt.After(c.since) {
				c.since = row.CreatedAt
			}
			delivered++
			if handler == nil {
				continue
			}
			if err := handler(ctx, c.partnerID, row); err != nil {
				log.WithError(err).WithField("message_id", string(row.ID)).Warn("message handler failed")
			}
		}
		c.prune()
	}

	if delivered > 0 {
		c.interval = p.cfg.Interval
	} else {
		c.interval = time.Duration(float64(c.interval) * p.cfg.BackoffMultiplier)
		if c.interval > p.cfg.MaxBackoff {
			c.interval = p.cfg.MaxBackoff
		}
	}
	c.next = time.Now().Add(p.waitDuration(c.interval))
	log.WithField("delivered", delivered).WithField("interval", c.interval).Debug("polled conversation")
}

func (c *polledConversation) prune() {
	for id, created := range c.seen {
		if created.Before(c.since) {
			delete(c.seen, id)
		}
	}
}

func (p *Poller) waitDuration(interval time.Duration) time.Duration {
	jitter := time.Duration(rand.Float64() * p.cfg.JitterFactor * float64(interval))
	return interval + jitter
}
