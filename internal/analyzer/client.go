package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/pkg/types"
)

// response is the analyzer service's reply envelope.
type response struct {
	ID     string                `json:"id"`
	Result *types.AnalysisResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// ClientConfig configures the websocket analyzer client.
type ClientConfig struct {
	Endpoint    string        // ws:// URL of the analyzer service
	DialTimeout time.Duration // connection establishment budget
}

// Client talks to the screen-analyzer service over a websocket session.
// Requests are JSON envelopes correlated by ID; the session is re-dialed on
// the next call after a transport failure.
type Client struct {
	config ClientConfig
	log    *logging.Logger

	mu   sync.Mutex // one request at a time on the session
	conn *websocket.Conn
}

// NewClient creates an analyzer client. No connection is made until the
// first Analyze call.
func NewClient(cfg ClientConfig) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Client{
		config: cfg,
		log:    logging.Global().WithComponent("Analyzer"),
	}
}

// Analyze sends an analysis request and waits for the correlated response.
// The context deadline bounds the whole exchange.
func (c *Client) Analyze(ctx context.Context, req Request) (*types.AnalysisResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensureConn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	deadline := time.Now().Add(c.config.DialTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	if err := conn.SetWriteDeadline(deadline); err == nil {
		err = conn.WriteJSON(req)
	}
	if err != nil {
		c.drop()
		return nil, fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}

	conn.SetReadDeadline(deadline)
	for {
		var resp response
		if err := conn.ReadJSON(&resp); err != nil {
			c.drop()
			return nil, fmt.Errorf("%w: read: %v", ErrUnavailable, err)
		}

		// Stale replies to abandoned requests are skipped.
		if resp.ID != req.ID {
			c.log.Debug("skipping stale response %s (waiting for %s)", resp.ID, req.ID)
			continue
		}

		if resp.Error != "" {
			return nil, fmt.Errorf("analysis failed: %s", resp.Error)
		}
		if resp.Result == nil {
			return nil, fmt.Errorf("analysis returned no result")
		}
		return resp.Result, nil
	}
}

// ensureConn dials the analyzer service if no live session exists.
func (c *Client) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.config.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.config.Endpoint, err)
	}

	c.log.Debug("connected to %s", c.config.Endpoint)
	c.conn = conn
	return conn, nil
}

// drop discards the session so the next call re-dials.
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close terminates the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop()
	return nil
}
