package aiproxy

import (
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the default chat proxy base URL.
	DefaultBaseURL = "https://api.edudash.pro"

	// DefaultTimeout is the default timeout for non-streaming requests.
	// Streaming requests are bounded by their context, not this timeout.
	DefaultTimeout = 30 * time.Second

	chatPath = "/v1/assistant/chat"
)

// Client is the chat proxy API client.
type Client struct {
	config *clientConfig
}

// clientConfig holds the client configuration.
type clientConfig struct {
	token      string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option is a function that configures the client.
type Option func(*clientConfig)

// WithBaseURL sets a custom base URL for the proxy.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client. The client's own timeout is
// left untouched, so pass one without a Timeout when streaming.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the non-streaming request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// NewClient creates a new chat proxy client. The token is the caller's
// bearer token; obtaining and refreshing it is the caller's concern.
func NewClient(token string, opts ...Option) *Client {
	cfg := &clientConfig{
		token:   token,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		// No Timeout on the transport client: streaming responses stay
		// open for the whole utterance. Per-request deadlines come from
		// the caller's context.
		cfg.httpClient = &http.Client{}
	}
	return &Client{config: cfg}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.baseURL
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "orbvoice-go/1.0")
}
