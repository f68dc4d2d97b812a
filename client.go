package e2eechat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/e2eechat/client-go/internal/api"
	"github.com/e2eechat/client-go/internal/crypto"
	"github.com/e2eechat/client-go/internal/keystore"
	"github.com/e2eechat/client-go/internal/keyvault"
	"github.com/e2eechat/client-go/internal/logging"
)

// EncryptedMessage is a sealed message as stored on the server. All fields
// are standard padded base64.
type EncryptedMessage = crypto.EncryptedMessage

// User is a user known to the message server.
type User struct {
	ID    string
	Email string
	// PublicKey is empty if the user never registered a key.
	PublicKey string
}

// HasKey reports whether the user can receive messages.
func (u User) HasKey() bool {
	return u.PublicKey != ""
}

// Client holds the device's key pair and talks to the message server.
// It is safe for concurrent use.
type Client struct {
	cfg       *clientConfig
	store     keystore.Store
	ownsStore bool
	vault     *keyvault.Vault
	log       *logrus.Entry
	metrics   *metrics

	apiMu     sync.RWMutex
	apiClient *api.Client

	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
	watches  sync.WaitGroup
}

// New creates a client. The key store is opened immediately; the server is
// not contacted until an operation needs it.
func New(opts ...Option) (*Client, error) {
	if err := crypto.Init(); err != nil {
		return nil, err
	}

	cfg := &clientConfig{
		baseURL:      api.DefaultBaseURL,
		timeout:      defaultTimeout,
		retries:      3,
		kdf:          crypto.ModerateKDF,
		placeholder:  DefaultPlaceholder,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.registerer == nil {
		cfg.registerer = prometheus.NewRegistry()
	}
	if err := cfg.kdf.Validate(); err != nil {
		return nil, wrapError("new", "kdf params", err)
	}

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	store, owns := cfg.store, false
	if store == nil {
		owns = true
		if cfg.dataDir != "" {
			bs, err := keystore.Open(keystore.Config{Path: cfg.dataDir, Logger: cfg.logger})
			if err != nil {
				return nil, err
			}
			store = bs
		} else {
			store = keystore.NewMemoryStore()
		}
	}

	c := &Client{
		cfg:       cfg,
		store:     store,
		ownsStore: owns,
		vault: keyvault.New(store,
			keyvault.WithKDFParams(cfg.kdf),
			keyvault.WithLogger(cfg.logger)),
		log:      cfg.logger.WithField("component", "client"),
		metrics:  m,
		closedCh: make(chan struct{}),
	}

	if cfg.token != "" {
		if err := c.SetToken(cfg.token); err != nil {
			if owns {
				_ = store.Close()
			}
			return nil, err
		}
	}
	return c, nil
}

// SetToken sets or replaces the bearer token used for server operations.
func (c *Client) SetToken(token string) error {
	if token == "" {
		return ErrMissingToken
	}

	c.apiMu.Lock()
	defer c.apiMu.Unlock()
	if c.apiClient != nil {
		c.apiClient.SetToken(token)
		return nil
	}

	retry := api.NoRetry()
	if c.cfg.retries > 0 {
		retry = api.DefaultRetryConfig()
		retry.MaxRetries = c.cfg.retries
	}
	httpClient := c.cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.cfg.timeout}
	}

	ac, err := api.NewClient(api.Config{
		BaseURL:    c.cfg.baseURL,
		Token:      token,
		HTTPClient: httpClient,
		Retry:      retry,
		Logger:     c.cfg.logger,
		RateLimit:  c.cfg.rateLimit,
		RateBurst:  c.cfg.rateBurst,
	})
	if err != nil {
		return err
	}
	c.apiClient = ac
	return nil
}

func (c *Client) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

func (c *Client) server() (*api.Client, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	c.apiMu.RLock()
	defer c.apiMu.RUnlock()
	if c.apiClient == nil {
		return nil, ErrMissingToken
	}
	return c.apiClient, nil
}

// EnsureKeyPair loads the device's key pair, generating and storing one if
// none exists, and returns the encoded public key. It does not contact the
// server; Setup also registers the key.
func (c *Client) EnsureKeyPair() (string, bool, error) {
	if err := c.checkClosed(); err != nil {
		return "", false, err
	}
	kp, generated, err := c.vault.EnsureKeyPair()
	if err != nil {
		return "", false, wrapError("ensure key pair", "", err)
	}
	defer kp.Wipe()
	return kp.PublicKeyText(), generated, nil
}

// Setup makes sure the device has a key pair, generating one on first use,
// and registers the public key with the server. The returned bool reports
// whether a pair was generated. A corrupt local pair is reported as a
// *CorruptionError and left untouched.
func (c *Client) Setup(ctx context.Context) (string, bool, error) {
	srv, err := c.server()
	if err != nil {
		return "", false, err
	}

	kp, generated, err := c.vault.EnsureKeyPair()
	if err != nil {
		return "", false, wrapError("setup", "", err)
	}
	defer kp.Wipe()
	pub := kp.PublicKeyText()

	// Registration replaces the server's copy of the backup, so resend it.
	req := api.RegisterKeyRequest{PublicKey: pub}
	if blob, ok, err := c.vault.StoredBackup(); err != nil {
		c.log.WithError(err).Warn("ignoring unreadable local backup")
	} else if ok {
		text, err := blob.MarshalText()
		if err != nil {
			return "", false, err
		}
		req.EncryptedPrivateKey = string(text)
	}

	if err := srv.RegisterKey(ctx, req); err != nil {
		return "", false, wrapError("setup", "", err)
	}
	c.log.WithField("fingerprint", kp.Fingerprint()).WithField("generated", generated).Info("registered public key")
	return pub, generated, nil
}

// PublicKey returns the device's encoded public key. The bool is false if
// no key pair exists yet.
func (c *Client) PublicKey() (string, bool, error) {
	if err := c.checkClosed(); err != nil {
		return "", false, err
	}
	kp, ok, err := c.vault.Load()
	if err != nil || !ok {
		return "", false, wrapError("public key", "", err)
	}
	defer kp.Wipe()
	return kp.PublicKeyText(), true, nil
}

// Fingerprint returns a short, human-comparable digest of the device's
// public key.
func (c *Client) Fingerprint() (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	kp, ok, err := c.vault.Load()
	if err != nil {
		return "", wrapError("fingerprint", "", err)
	}
	if !ok {
		return "", &NoKeyError{Op: "fingerprint"}
	}
	defer kp.Wipe()
	return kp.Fingerprint(), nil
}

// SafetyWords returns 15 words derived from publicKey for comparing keys
// out of band. An empty publicKey selects the device's own key.
func (c *Client) SafetyWords(publicKey string) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	if publicKey == "" {
		own, ok, err := c.PublicKey()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", &NoKeyError{Op: "safety words"}
		}
		publicKey = own
	}
	raw, err := crypto.DecodeSized("public key", publicKey, crypto.KeySize)
	if err != nil {
		return "", wrapError("safety words", "public key", err)
	}
	words, err := crypto.SafetyWords(raw)
	if err != nil {
		return "", wrapError("safety words", "public key", err)
	}
	return words, nil
}

// Users lists the users known to the server.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	srv, err := c.server()
	if err != nil {
		return nil, err
	}
	rows, err := srv.GetUsers(ctx)
	if err != nil {
		return nil, wrapError("users", "", err)
	}
	users := make([]User, len(rows))
	for i, r := range rows {
		users[i] = User{ID: r.UserID, Email: r.Email, PublicKey: r.PublicKey}
	}
	return users, nil
}

// EncryptMessage seals text for the holder of recipientPublicKey. Every
// call produces a different result.
func (c *Client) EncryptMessage(recipientPublicKey, text string) (*EncryptedMessage, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	msg, err := crypto.SealText(recipientPublicKey, text)
	if err != nil {
		field := "recipient public key"
		if errors.Is(err, crypto.ErrInvalidPlaintext) {
			field = "message"
		}
		return nil, wrapError("encrypt", field, err)
	}
	c.metrics.sealed.Inc()
	return msg, nil
}

// DecryptMessage opens msg with the device's private key.
func (c *Client) DecryptMessage(msg *EncryptedMessage) (string, error) {
	if err := c.checkClosed(); err != nil {
		return "", err
	}
	if msg == nil {
		return "", &FormatError{Field: "message", Err: fmt.Errorf("nil message")}
	}
	text, err := c.vault.Open(msg)
	err = wrapError("decrypt", "message", err)
	c.metrics.opened.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return "", err
	}
	return text, nil
}

// Send encrypts text for the recipient and stores it on the server. If
// recipientPublicKey is empty it is looked up with Users.
func (c *Client) Send(ctx context.Context, recipientID, recipientPublicKey, text string) error {
	srv, err := c.server()
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if recipientPublicKey == "" {
		recipientPublicKey, err = c.lookupKey(ctx, recipientID)
		if err != nil {
			return err
		}
	}

	msg, err := c.EncryptMessage(recipientPublicKey, text)
	if err != nil {
		return err
	}
	err = srv.SendMessage(ctx, api.SendMessageRequest{
		RecipientID:        recipientID,
		Ciphertext:         msg.Ciphertext,
		Nonce:              msg.Nonce,
		EphemeralPublicKey: msg.EphemeralPublicKey,
	})
	if err != nil {
		return wrapError("send", "", err)
	}
	c.log.WithField("recipient", recipientID).Debug("sent message")
	return nil
}

func (c *Client) lookupKey(ctx context.Context, userID string) (string, error) {
	users, err := c.Users(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID == userID {
			if !u.HasKey() {
				break
			}
			return u.PublicKey, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRecipient, userID)
}

// Close stops running watches and releases the key store if the client
// opened it. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closedCh)
	c.mu.Unlock()

	c.watches.Wait()
	if c.ownsStore {
		return c.store.Close()
	}
	return nil
}
