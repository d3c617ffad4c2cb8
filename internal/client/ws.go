package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMaxAttempts = 10
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// ConnState is the connection state, exactly one per client.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
)

// Handler receives dispatched envelopes of one message type.
type Handler func(Envelope)

// StateHandler receives connection state transitions.
type StateHandler func(ConnState)

// Subscription is an opaque handle returned from Subscribe and
// OnStateChange. Cancel removes the registration; it is safe to call
// more than once.
type Subscription struct {
	cancel func()
}

// Cancel removes the subscription.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// ConnConfig configures a ConnClient.
type ConnConfig struct {
	URL         string // WebSocket URL, e.g. "ws://127.0.0.1:8000/ws"
	Token       string // session credential, sent as a query parameter
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // reconnect attempt cap; exhaustion stops auto-retry
	Logger      *slog.Logger
}

func (c *ConnConfig) defaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ConnClient owns the streaming connection to the monitoring server. It
// dispatches typed envelopes to subscribers and reconnects with capped
// exponential backoff after unexpected closes. All methods are safe for
// concurrent use.
type ConnClient struct {
	cfg    ConnConfig
	logger *slog.Logger
	dialer *websocket.Dialer

	mu             sync.Mutex
	writeMu        sync.Mutex // serialises all conn writes (ping, client commands)
	conn           *websocket.Conn
	state          ConnState
	intentional    bool // Disconnect was called; suppresses auto-reconnect
	attempt        int
	reconnectTimer *time.Timer
	pingStop       chan struct{}

	nextSubID int
	subs      map[MessageType]map[int]Handler
	stateSubs map[int]StateHandler
}

// NewConnClient creates a client for the given configuration. The
// connection is not opened until Connect is called.
func NewConnClient(cfg ConnConfig) *ConnClient {
	cfg.defaults()
	return &ConnClient{
		cfg:       cfg,
		logger:    cfg.Logger,
		dialer:    websocket.DefaultDialer,
		state:     StateDisconnected,
		subs:      make(map[MessageType]map[int]Handler),
		stateSubs: make(map[int]StateHandler),
	}
}

// State returns the current connection state.
func (c *ConnClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the stream is up.
func (c *ConnClient) Connected() bool {
	return c.State() == StateConnected
}

// Subscribe registers a handler for one message type and returns its
// handle. Handlers run on the read loop goroutine, in envelope order.
func (c *ConnClient) Subscribe(kind MessageType, h Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	if c.subs[kind] == nil {
		c.subs[kind] = make(map[int]Handler)
	}
	c.subs[kind][id] = h
	return Subscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[kind], id)
	}}
}

// OnStateChange registers a handler invoked on every state transition.
func (c *ConnClient) OnStateChange(h StateHandler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.stateSubs[id] = h
	return Subscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}}
}

// Connect opens the streaming connection. It is a no-op when already
// connected or connecting. A dial failure is returned to the caller and
// also feeds the backoff machine, so retries continue in the background
// until the attempt cap is reached.
func (c *ConnClient) Connect() error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.intentional = false
	c.attempt = 0
	// A manual connect supersedes any scheduled redial; otherwise the
	// armed timer would race this dial and could open a second stream.
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting)
	return c.dial()
}

// Disconnect marks the close as intentional, stops any pending
// reconnect, closes the connection and leaves the client disconnected.
func (c *ConnClient) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	conn := c.conn
	c.conn = nil
	c.attempt = 0
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.setState(StateDisconnected)
}

// Send writes a client command (e.g. a subscription request) to the
// server as JSON.
func (c *ConnClient) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

func (c *ConnClient) dial() error {
	url := c.cfg.URL
	if c.cfg.Token != "" {
		url += "?token=" + c.cfg.Token
	}

	conn, _, err := c.dialer.Dial(url, nil)
	if err != nil {
		c.logger.Warn("ws dial failed", "url", c.cfg.URL, "err", err)
		c.scheduleReconnect()
		return fmt.Errorf("ws dial: %w", err)
	}

	c.mu.Lock()
	if c.intentional {
		// Disconnect raced the dial; drop the fresh connection.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	if c.pingStop != nil {
		close(c.pingStop)
	}
	prev := c.conn
	pingStop := make(chan struct{})
	c.conn = conn
	c.attempt = 0
	c.pingStop = pingStop
	c.mu.Unlock()

	// A replaced connection is closed so its read loop exits via the
	// stale-conn check instead of dispatching alongside the new one.
	if prev != nil {
		prev.Close()
	}
	c.setState(StateConnected)
	go c.readLoop(conn)
	go c.pingLoop(conn, pingStop)
	return nil
}

// readLoop reads envelopes until the connection dies. Handlers run here
// so subscribers observe envelopes in arrival order.
func (c *ConnClient) readLoop(conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.conn != conn
			intentional := c.intentional
			if !stale {
				c.conn = nil
				if c.pingStop != nil {
					close(c.pingStop)
					c.pingStop = nil
				}
			}
			c.mu.Unlock()
			conn.Close()
			if stale || intentional {
				return
			}
			c.logger.Warn("ws connection lost", "err", err)
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.logger.Warn("dropping malformed envelope", "err", err, "raw", string(data))
			continue
		}
		c.dispatch(env)
	}
}

func (c *ConnClient) dispatch(env Envelope) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.subs[env.Type]))
	for _, h := range c.subs[env.Type] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(env)
	}
}

// scheduleReconnect arms a timer for the next attempt, or gives up once
// the cap is exceeded. Manual Connect() is required after exhaustion.
func (c *ConnClient) scheduleReconnect() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	c.attempt++
	attempt := c.attempt
	if attempt > c.cfg.MaxAttempts {
		c.mu.Unlock()
		c.logger.Error("reconnect attempts exhausted", "attempts", c.cfg.MaxAttempts)
		c.setState(StateDisconnected)
		return
	}
	delay := backoffDelay(attempt, c.cfg.BaseDelay, c.cfg.MaxDelay)
	c.reconnectTimer = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()

	c.setState(StateReconnecting)
	c.logger.Info("ws reconnect scheduled", "attempt", attempt, "delay", delay)
}

func (c *ConnClient) redial() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()

	c.setState(StateConnecting)
	c.dial()
}

func (c *ConnClient) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	handlers := make([]StateHandler, 0, len(c.stateSubs))
	for _, h := range c.stateSubs {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(s)
	}
}

// pingLoop keeps the connection alive with websocket pings until the
// connection changes or stop is closed.
func (c *ConnClient) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			current := c.conn
			c.mu.Unlock()
			if current != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// backoffDelay returns min(base * 2^(attempt-1), max) for attempt >= 1.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// subscriberCount reports registrations for one message type.
func (c *ConnClient) subscriberCount(kind MessageType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[kind])
}

// stateSubscriberCount reports state-change registrations.
func (c *ConnClient) stateSubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stateSubs)
}
