package e2eechat

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/e2eechat/client-go/internal/crypto"
	"github.com/e2eechat/client-go/internal/keystore"
)

// DefaultPlaceholder is shown in place of a message that cannot be decrypted.
const DefaultPlaceholder = "[Unable to decrypt]"

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 4 * time.Second
)

// KDFParams sets the cost of deriving a wrapping key from a passphrase.
type KDFParams = crypto.KDFParams

// Predefined KDF costs. ModerateKDF is the default.
var (
	ModerateKDF    = crypto.ModerateKDF
	InteractiveKDF = crypto.InteractiveKDF
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	timeout      time.Duration
	retries      int
	store        keystore.Store
	dataDir      string
	logger       *logrus.Logger
	registerer   prometheus.Registerer
	kdf          crypto.KDFParams
	placeholder  string
	pollInterval time.Duration
	pollMax      time.Duration
	rateLimit    float64
	rateBurst    int
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the function root of the message server.
// Default: http://localhost:8888/.netlify/functions
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithToken sets the bearer token of the signed-in user. Without a token
// only local operations are available.
func WithToken(token string) Option {
	return func(c *clientConfig) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request HTTP timeout. It is ignored when
// WithHTTPClient is also given.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets the number of retries for transient API failures. Zero
// disables retries. Default: 3
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithStore keeps the key pair in store. The caller owns the store and
// closes it after the client.
func WithStore(store keystore.Store) Option {
	return func(c *clientConfig) {
		c.store = store
	}
}

// WithDataDir keeps the key pair in an on-disk database under dir, opened
// and closed by the client. Without WithStore or WithDataDir keys live in
// memory and are lost on Close.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithRegisterer registers the client's metrics with reg. Default: a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithKDFParams sets the passphrase KDF cost for new backups. Restores use
// whatever cost the backup records.
// Default: ModerateKDF
func WithKDFParams(p KDFParams) Option {
	return func(c *clientConfig) {
		c.kdf = p
	}
}

// WithPlaceholder sets the text shown for messages that fail to decrypt.
// Default: "[Unable to decrypt]"
func WithPlaceholder(text string) Option {
	return func(c *clientConfig) {
		c.placeholder = text
	}
}

// WithPollInterval sets the initial interval between polls in Watch. The
// interval backs off up to max while nothing arrives; a zero max keeps the
// default of 30 seconds.
// Default: 4 seconds
func WithPollInterval(interval, max time.Duration) Option {
	return func(c *clientConfig) {
		c.pollInterval = interval
		c.pollMax = max
	}
}

// WithRateLimit caps requests to the server at perSecond, allowing bursts
// of up to burst requests. Default: unlimited
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *clientConfig) {
		c.rateLimit = perSecond
		c.rateBurst = burst
	}
}
