// Package pumpportal is a reconnecting client for the PumpPortal data stream.
package pumpportal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trend-scout/internal/dedup"
	"trend-scout/internal/observability"
)

// DefaultEndpoint is the public PumpPortal data stream.
const DefaultEndpoint = "wss://pumpportal.fun/api/data"

// Client errors.
var (
	ErrClosed       = errors.New("pumpportal: client closed")
	ErrNotConnected = errors.New("pumpportal: not connected")
)

// Human-readable status errors.
const (
	errConnectionLost   = "connection lost, reconnecting"
	errConnectionFailed = "connection failed, retrying"
)

// Config configures Client behavior.
type Config struct {
	// ReconnectDelay is the wait after an established connection drops.
	ReconnectDelay time.Duration
	// DialRetryDelay is the wait after a failed dial.
	DialRetryDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds silence on the socket; pongs extend it. Zero disables it.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
	// MaxTradeKeys bounds the remembered trade subscriptions.
	MaxTradeKeys int
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:   3 * time.Second,
		DialRetryDelay:   5 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		EventBuffer:      4096,
		MaxTradeKeys:     dedup.DefaultCapacity,
	}
}

// Client maintains a single PumpPortal connection, reconnecting forever until closed.
type Client struct {
	endpoint string
	config   Config
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex // guards conn and serializes writes
	closed atomic.Bool

	statusMu sync.RWMutex
	status   Status

	// tradeKeys remembers trade subscriptions for re-establishment after reconnect.
	tradeKeys *dedup.Set

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	start  sync.Once
}

// NewClient creates a client. It does not connect until Start.
func NewClient(endpoint string, config *Config, logger zerolog.Logger) *Client {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	return &Client{
		endpoint:  endpoint,
		config:    cfg,
		logger:    logger.With().Str("component", "pumpportal").Logger(),
		status:    Status{State: StateDisconnected},
		tradeKeys: dedup.New(cfg.MaxTradeKeys),
		events:    make(chan Event, cfg.EventBuffer),
		done:      make(chan struct{}),
	}
}

// Events delivers decoded feed events. It is closed after Close returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Start begins connecting in the background. Cancelling ctx closes the client.
func (c *Client) Start(ctx context.Context) {
	c.start.Do(func() {
		c.wg.Add(1)
		go c.run()

		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-c.done:
			}
		}()
	})
}

// SubscribeTokenTrade subscribes to trades for mints. Keys are remembered and re-sent
// after every reconnect; when the remembered set overflows, the oldest key is
// unsubscribed. Returns ErrNotConnected when the keys could only be remembered.
func (c *Client) SubscribeTokenTrade(mints ...string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	keys := make([]string, 0, len(mints))
	var evicted []string
	for _, m := range mints {
		if m == "" {
			continue
		}
		if c.tradeKeys.Has(m) {
			continue
		}
		if old, ok := c.tradeKeys.MarkSeen(m); ok {
			evicted = append(evicted, old)
		}
		keys = append(keys, m)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.send(request{Method: methodSubscribeTokenTrade, Keys: keys}); err != nil {
		return err
	}
	if len(evicted) > 0 {
		if err := c.send(request{Method: methodUnsubscribeTokenTrade, Keys: evicted}); err != nil {
			c.logger.Debug().Err(err).Int("keys", len(evicted)).Msg("unsubscribe evicted keys failed")
		}
	}
	return nil
}

// TradeKeys returns the remembered trade subscription keys, oldest first.
func (c *Client) TradeKeys() []string {
	return c.tradeKeys.Keys()
}

// Close stops reconnecting, closes the socket and waits for goroutines to exit.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.statusMu.Lock()
	c.status = Status{State: StateClosed}
	c.statusMu.Unlock()

	close(c.events)
	return nil
}

// run owns the connection lifecycle.
func (c *Client) run() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.setStatus(StateConnecting, "")

		conn, err := c.dial()
		if err != nil {
			c.logger.Warn().Err(err).Dur("retry_in", c.config.DialRetryDelay).Msg("dial failed")
			c.setStatus(StateDisconnected, errConnectionFailed)
			observability.RecordFeedReconnect("dial_failed")
			if !c.wait(c.config.DialRetryDelay) {
				return
			}
			continue
		}

		if !c.attach(conn) {
			conn.Close()
			return
		}

		if err := c.send(request{Method: methodSubscribeNewToken}); err != nil {
			c.logger.Warn().Err(err).Msg("subscribeNewToken failed")
		}
		c.setStatus(StateConnected, "")
		c.logger.Info().Str("endpoint", c.endpoint).Msg("connected")
		c.resubscribeAll()

		stopPing := make(chan struct{})
		c.wg.Add(1)
		go c.pingLoop(conn, stopPing)

		err = c.readLoop(conn)
		close(stopPing)
		c.detach(conn)

		if c.closed.Load() {
			return
		}
		c.logger.Warn().Err(err).Dur("retry_in", c.config.ReconnectDelay).Msg("connection lost")
		c.setStatus(StateDisconnected, errConnectionLost)
		observability.RecordFeedReconnect("connection_lost")
		if !c.wait(c.config.ReconnectDelay) {
			return
		}
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.HandshakeTimeout+time.Second)
	defer cancel()

	// Close must be able to abort an in-flight dial.
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// attach installs conn unless the client closed meanwhile.
func (c *Client) attach(conn *websocket.Conn) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		return false
	}
	if c.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		})
	}
	c.conn = conn
	return true
}

func (c *Client) detach(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	conn.Close()
}

// wait sleeps for d unless the client closes first. Returns false on close.
func (c *Client) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.done:
		return false
	case <-t.C:
		return !c.closed.Load()
	}
}

// readLoop reads frames until the connection fails.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if c.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		ev, err := Decode(message)
		if err != nil {
			if !errors.Is(err, ErrNotEvent) {
				c.logger.Debug().Err(err).Msg("dropping message")
				observability.RecordFeedDropped()
			}
			continue
		}
		observability.RecordFeedEvent(ev.Kind.String())

		// Block until delivered; never drop decoded events.
		select {
		case c.events <- ev:
		case <-c.done:
			return ErrClosed
		}
	}
}

// resubscribeAll re-sends every remembered trade key on a fresh connection.
func (c *Client) resubscribeAll() {
	keys := c.tradeKeys.Keys()
	const chunk = 500
	for start := 0; start < len(keys); start += chunk {
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.send(request{Method: methodSubscribeTokenTrade, Keys: keys[start:end]}); err != nil {
			c.logger.Warn().Err(err).Msg("resubscribe failed")
			return
		}
	}
	if len(keys) > 0 {
		c.logger.Debug().Int("keys", len(keys)).Msg("resubscribed trade keys")
	}
}

// send writes one JSON message on the current connection.
func (c *Client) send(v request) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write %s: %w", v.Method, err)
	}
	return nil
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	defer c.wg.Done()

	if c.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn == conn {
				conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A failed ping surfaces as a read error.
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

func (c *Client) setStatus(state State, errMsg string) {
	if c.closed.Load() {
		return
	}
	c.statusMu.Lock()
	c.status = Status{State: state, Error: errMsg}
	c.statusMu.Unlock()
	observability.SetFeedConnected(state == StateConnected)
}
