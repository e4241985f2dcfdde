// Package bridge implements the client side of the native bridge boundary:
// shell command execution with per-call timeouts, plus the asynchronous event
// and raw-audio callbacks the bridge runtime delivers out-of-band.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/entities"
	"github.com/openmico/speakerbridge/domain/repositories"
)

const (
	// Time allowed to write a frame to the bridge.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the bridge.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size accepted from the bridge. Raw audio frames are the
	// largest traffic on this connection.
	maxFrameSize = 512 * 1024

	// Delay between reconnect attempts after the connection drops.
	reconnectDelay = 2 * time.Second
)

// Frame types exchanged with the native bridge.
const (
	frameTypeRunShell = "run_shell"
	frameTypeResult   = "result"
	frameTypeEvent    = "event"
)

// frame is the JSON envelope for every text frame on the bridge connection.
type frame struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Script    string          `json:"script,omitempty"`
	TimeoutMs int64           `json:"timeout_ms,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Config holds the bridge connection settings.
type Config struct {
	// URL is the websocket endpoint of the native bridge process.
	URL string
	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration
}

// Client is a websocket client for the native bridge. Callbacks must be
// registered before Start; the bridge begins delivering events as soon as the
// connection is up.
type Client struct {
	cfg    Config
	logger *zap.Logger

	onEvent     repositories.EventHandler
	onInputData repositories.InputDataHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan json.RawMessage
	started bool

	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Compile-time check against the runner contract.
var _ repositories.CommandRunner = (*Client)(nil)

// NewClient creates a bridge client. Start must be called before RunShell.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]chan json.RawMessage),
		send:    make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// OnEvent registers the device event callback. Must be called before Start.
func (c *Client) OnEvent(h repositories.EventHandler) {
	c.onEvent = h
}

// OnInputData registers the raw audio frame callback. Must be called before
// Start.
func (c *Client) OnInputData(h repositories.InputDataHandler) {
	c.onInputData = h
}

// Start dials the native bridge and launches the read and write pumps. It
// keeps reconnecting in the background until Close is called; commands issued
// while the connection is down resolve to an absent result.
func (c *Client) Start(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.started = true
	c.mu.Unlock()

	go c.writePump()
	go c.supervise(conn)

	c.logger.Info("Connected to native bridge", zap.String("url", c.cfg.URL))
	return nil
}

// Close tears down the connection and fails all in-flight commands.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.failPendingLocked()
		c.mu.Unlock()
	})
}

// RunShell executes script on the device through the native bridge. Any
// failure mode (not started, transport error, timeout, unparseable response)
// collapses to a nil result; see repositories.CommandRunner.
func (c *Client) RunShell(ctx context.Context, script string, timeout time.Duration) *entities.CommandResult {
	if timeout <= 0 {
		timeout = repositories.DefaultShellTimeout
	}

	c.mu.Lock()
	if !c.started || c.conn == nil {
		c.mu.Unlock()
		c.logger.Warn("Shell command dropped: bridge not connected")
		return nil
	}
	id := uuid.NewString()
	respCh := make(chan json.RawMessage, 1)
	c.pending[id] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(frame{
		ID:        id,
		Type:      frameTypeRunShell,
		Script:    script,
		TimeoutMs: timeout.Milliseconds(),
	})
	if err != nil {
		c.logger.Warn("Failed to encode shell command", zap.Error(err))
		return nil
	}

	select {
	case c.send <- payload:
	case <-c.closed:
		return nil
	case <-ctx.Done():
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case raw, ok := <-respCh:
		if !ok {
			// Connection dropped while waiting; outcome unknown.
			return nil
		}
		var result entities.CommandResult
		if err := json.Unmarshal(raw, &result); err != nil {
			c.logger.Warn("Malformed command result from bridge", zap.Error(err))
			return nil
		}
		return &result
	case <-timer.C:
		c.logger.Warn("Shell command timed out",
			zap.Duration("timeout", timeout))
		return nil
	case <-ctx.Done():
		return nil
	case <-c.closed:
		return nil
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// supervise runs the read pump for conn and redials when it exits, until the
// client is closed.
func (c *Client) supervise(conn *websocket.Conn) {
	for {
		c.readPump(conn)

		c.mu.Lock()
		c.conn = nil
		c.failPendingLocked()
		c.mu.Unlock()

		select {
		case <-c.closed:
			return
		case <-time.After(reconnectDelay):
		}

		next, err := c.dial(context.Background())
		if err != nil {
			c.logger.Warn("Bridge reconnect failed", zap.Error(err))
			conn = nil
			continue
		}
		c.mu.Lock()
		c.conn = next
		c.mu.Unlock()
		c.logger.Info("Reconnected to native bridge")
		conn = next
	}
}

// readPump reads frames from the bridge connection until it fails, dispatching
// command results to their waiters and events to the registered callbacks.
func (c *Client) readPump(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Bridge connection lost", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.dispatchFrame(message)
		case websocket.BinaryMessage:
			if c.onInputData != nil {
				c.onInputData(message)
			}
		}
	}
}

func (c *Client) dispatchFrame(message []byte) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		c.logger.Warn("Malformed frame from bridge", zap.Error(err))
		return
	}

	switch f.Type {
	case frameTypeResult:
		c.mu.Lock()
		respCh, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()
		if ok {
			respCh <- f.Result
		}
	case frameTypeEvent:
		if c.onEvent == nil {
			return
		}
		var raw string
		// The event body is either a JSON string or an inline object.
		if err := json.Unmarshal(f.Body, &raw); err != nil {
			raw = string(f.Body)
		}
		c.onEvent(raw)
	default:
		// Unknown frame types must not fail the pipeline.
		c.logger.Debug("Ignoring unknown bridge frame", zap.String("type", f.Type))
	}
}

// writePump serializes outbound frames and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			conn := c.currentConn()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Warn("Failed to write to bridge", zap.Error(err))
			}
		case <-ticker.C:
			conn := c.currentConn()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Bridge ping failed", zap.Error(err))
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// failPendingLocked closes every in-flight waiter. Callers hold c.mu.
func (c *Client) failPendingLocked() {
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
