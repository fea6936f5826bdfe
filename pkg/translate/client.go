// Package translate provides the client for the lingopipe streaming
// speech-translation endpoint.
//
// A session is one long-lived bidirectional WebSocket: the client streams
// raw L16 capture frames up as binary messages and receives JSON events
// down (incremental source/target transcripts, base64 synthesized audio,
// interruption and turn-complete signals). Synthesized audio may also
// arrive as raw binary frames.
package translate

import (
	"time"

	"github.com/google/uuid"
)

const (
	defaultWSURL            = "wss://api.lingopipe.dev"
	defaultHandshakeTimeout = 15 * time.Second
	defaultUserID           = "default_user"
)

// Client opens interpreter sessions against one endpoint with one set of
// credentials.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	apiKey           string
	wsURL            string
	userID           string
	handshakeTimeout time.Duration
}

// Option configures a Client.
type Option func(*clientConfig)

// NewClient creates a client.
//
// apiKey is the bearer credential issued for the translation endpoint.
func NewClient(apiKey string, opts ...Option) *Client {
	config := &clientConfig{
		apiKey:           apiKey,
		wsURL:            defaultWSURL,
		userID:           defaultUserID,
		handshakeTimeout: defaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Client{config: config}
}

// WithWSURL overrides the WebSocket endpoint URL.
//
// Default: wss://api.lingopipe.dev
func WithWSURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithUserID sets the user identifier attached to each session.
func WithUserID(id string) Option {
	return func(c *clientConfig) {
		c.userID = id
	}
}

// WithHandshakeTimeout sets the WebSocket handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.handshakeTimeout = d
	}
}

// generateReqID generates a unique request identifier.
func generateReqID() string {
	return "req_" + uuid.New().String()[:12]
}
