package e2eechat

import (
	"context"
	"time"

	"github.com/e2eechat/client-go/internal/api"
	"github.com/e2eechat/client-go/internal/crypto"
	"github.com/e2eechat/client-go/internal/delivery"
)

// Message is one message of a conversation.
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	CreatedAt   time.Time

	// Text is the plaintext, or the placeholder if Decrypted is false.
	Text string
	// Decrypted reports whether Text is the real plaintext.
	Decrypted bool
	// Err is why decryption failed. Messages this device sent were sealed
	// for the recipient and always fail here.
	Err error
}

// Conversation returns the messages exchanged with partnerID, oldest first.
// A non-zero since skips messages created before it. A message that cannot
// be decrypted is returned with the placeholder text and its Err set; it
// never hides the other messages.
func (c *Client) Conversation(ctx context.Context, partnerID string, since time.Time) ([]Message, error) {
	srv, err := c.server()
	if err != nil {
		return nil, err
	}
	rows, err := srv.GetMessages(ctx, partnerID, since)
	if err != nil {
		return nil, wrapError("conversation", "", err)
	}

	// Servers may ignore since and return the whole history.
	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		if row.CreatedAt.Before(since) {
			continue
		}
		msgs = append(msgs, c.render(row))
	}
	return msgs, nil
}

// Watch delivers every message exchanged with partnerID that was created at
// or after since, then keeps polling for new ones until ctx is done or the
// client is closed. Each message is delivered once, in order, from a single
// goroutine. Watch returns ctx.Err() or ErrClientClosed.
func (c *Client) Watch(ctx context.Context, partnerID string, since time.Time, fn func(Message)) error {
	srv, err := c.server()
	if err != nil {
		return err
	}
	if partnerID == "" {
		return &FormatError{Field: "partner id", Err: api.ErrBadRequest}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.watches.Add(1)
	c.mu.Unlock()
	defer c.watches.Done()

	p := delivery.NewPoller(delivery.Config{
		Fetcher:    srv,
		Interval:   c.cfg.pollInterval,
		MaxBackoff: c.cfg.pollMax,
		Logger:     c.cfg.logger,
	})
	handler := func(ctx context.Context, _ string, row api.MessageRow) error {
		fn(c.render(row))
		return nil
	}
	if err := p.Start(ctx, []delivery.Conversation{{PartnerID: partnerID, Since: since}}, handler); err != nil {
		return err
	}
	defer p.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closedCh:
		return ErrClientClosed
	}
}

func (c *Client) render(row api.MessageRow) Message {
	m := Message{
		ID:          string(row.ID),
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		CreatedAt:   row.CreatedAt,
	}

	text, err := c.DecryptMessage(&crypto.EncryptedMessage{
		Ciphertext:         row.Ciphertext,
		Nonce:              row.Nonce,
		EphemeralPublicKey: row.EphemeralPublicKey,
	})
	if err != nil {
		c.log.WithField("message_id", m.ID).WithError(err).Warn("message could not be decrypted")
		m.Text = c.cfg.placeholder
		m.Err = err
		return m
	}
	m.Text = text
	m.Decrypted = true
	return m
}
