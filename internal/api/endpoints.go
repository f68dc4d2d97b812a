package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Endpoint names under the function root.
const (
	EndpointRegisterKey = "register-key"
	EndpointGetUsers    = "get-users"
	EndpointSendMessage = "send-message"
	EndpointGetMessages = "get-messages"
)

// RegisterKey publishes the caller's public key and, optionally, a wrapped
// private key backup.
func (c *Client) RegisterKey(ctx context.Context, req RegisterKeyRequest) error {
	if req.PublicKey == "" {
		return fmt.Errorf("%w: publicKey is required", ErrBadRequest)
	}
	var result okResponse
	return c.Do(ctx, http.MethodPost, EndpointRegisterKey, nil, req, &result)
}

// GetUsers lists every user known to the server, with their public key if
// they registered one.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var result []User
	if err := c.Do(ctx, http.MethodGet, EndpointGetUsers, nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SendMessage stores a sealed message for a recipient. It is sent once:
// the server does not deduplicate, so a retry after a lost response would
// store the message twice.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	if req.RecipientID == "" || req.Ciphertext == "" || req.Nonce == "" || req.EphemeralPublicKey == "" {
		return fmt.Errorf("%w: recipientId, ciphertext, nonce, ephemeralPublicKey are required", ErrBadRequest)
	}
	var result okResponse
	return c.do(ctx, NoRetry(), http.MethodPost, EndpointSendMessage, nil, req, &result)
}

// GetMessages returns the conversation with a partner in ascending creation
// order. A non-zero since asks for messages created at or after it; servers
// may ignore it and return the whole conversation.
func (c *Client) GetMessages(ctx context.Context, with string, since time.Time) ([]MessageRow, error) {
	if with == "" {
		return nil, fmt.Errorf("%w: query param 'with' is required", ErrBadRequest)
	}
	q := url.Values{"with": {with}}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
	}

	var result []MessageRow
	if err := c.Do(ctx, http.MethodGet, EndpointGetMessages, q, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}
