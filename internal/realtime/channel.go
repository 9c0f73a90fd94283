// Package realtime provides the websocket channel for one room.
package realtime

import (
	"encoding/json"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/metrics"
	"github.com/planhub/core/internal/sync/scheduler"
)

// Health is the connection state of a channel.
type Health string

const (
	HealthConnected    Health = "connected"
	HealthDisconnected Health = "disconnected"
	HealthSyncing      Health = "syncing"
	HealthError        Health = "error"
	HealthPaused       Health = "paused"
)

const (
	defaultBaseDelay   = 2 * time.Second
	defaultMaxAttempts = 5

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// ChannelConfig holds channel construction parameters.
type ChannelConfig struct {
	// URL is the full room endpoint, e.g. ws://host/ws/projects.
	URL string
	// Room is the logical room name sent in the join envelope.
	Room string
	// Dispatch receives every decoded non-liveness envelope.
	Dispatch func(Envelope)
	// Dialer overrides the websocket dialer; nil means the default.
	Dialer *websocket.Dialer
	// Scheduler owns the reconnect timers.
	Scheduler *scheduler.Scheduler
	Logger    *logging.Logger
	Metrics   metrics.Collector
	// BaseDelay scales the linear reconnect backoff; zero means 2s.
	BaseDelay time.Duration
	// MaxAttempts caps automatic reconnects; zero means 5.
	MaxAttempts int
}

// Channel keeps one room connection alive. On unexpected close it
// reconnects with linearly increasing delay, giving up for good after
// MaxAttempts consecutive failures.
type Channel struct {
	url      string
	room     string
	dispatch func(Envelope)
	dialer   *websocket.Dialer
	sched    *scheduler.Scheduler
	log      *logging.Logger
	metrics  metrics.Collector

	baseDelay   time.Duration
	maxAttempts int

	mu        gosync.Mutex
	conn      *websocket.Conn
	status    Health
	attempts  int
	paused    bool
	closed    bool
	reconnect *scheduler.Handle

	writeMu gosync.Mutex
}

// NewChannel creates a disconnected channel; call Connect.
func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Get()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = scheduler.New(nil, cfg.Logger)
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Channel{
		url:         cfg.URL,
		room:        cfg.Room,
		dispatch:    cfg.Dispatch,
		dialer:      cfg.Dialer,
		sched:       cfg.Scheduler,
		log:         cfg.Logger.WithComponent("realtime"),
		metrics:     cfg.Metrics,
		baseDelay:   cfg.BaseDelay,
		maxAttempts: cfg.MaxAttempts,
		status:      HealthDisconnected,
	}
}

// Room returns the channel's room name.
func (c *Channel) Room() string {
	return c.room
}

// Status returns the connection health.
func (c *Channel) Status() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect dials the room. An explicit call resets the attempt budget,
// so a channel that gave up after exhausting reconnects starts over.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.paused = false
	c.attempts = 0
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.mu.Unlock()

	c.dial()
}

// Pause suspends the channel while the page is hidden: the connection
// drops and no reconnects are scheduled until Resume.
func (c *Channel) Pause() {
	c.mu.Lock()
	if c.paused || c.closed {
		c.mu.Unlock()
		return
	}
	c.paused = true
	c.status = HealthPaused
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.log.Info("channel paused", map[string]interface{}{"room": c.room})
}

// Resume re-enters a paused channel and dials immediately.
func (c *Channel) Resume() {
	c.mu.Lock()
	if !c.paused || c.closed {
		c.mu.Unlock()
		return
	}
	c.paused = false
	c.attempts = 0
	c.mu.Unlock()

	c.log.Info("channel resumed", map[string]interface{}{"room": c.room})
	c.dial()
}

// Close shuts the channel down permanently.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.status = HealthDisconnected
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// dial opens the connection, announces the room, and starts the read
// and liveness loops.
func (c *Channel) dial() {
	c.setStatus(HealthSyncing)

	conn, resp, err := c.dialer.Dial(c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.log.Warn("dial failed", map[string]interface{}{
			"room":  c.room,
			"url":   c.url,
			"error": err.Error(),
		})
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed || c.paused {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.attempts = 0
	c.status = HealthConnected
	c.mu.Unlock()

	if err := c.write(conn, joinEnvelope(c.room, c.sched.Clock().Now())); err != nil {
		c.log.Warn("join_room send failed", map[string]interface{}{
			"room":  c.room,
			"error": err.Error(),
		})
		conn.Close()
		c.scheduleReconnect()
		return
	}

	c.log.Info("channel connected", map[string]interface{}{"room": c.room})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)
}

// readLoop decodes envelopes in arrival order. Liveness envelopes are
// answered here; everything else goes to the dispatcher.
func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.log.Warn("undecodable message", map[string]interface{}{
				"room":  c.room,
				"error": err.Error(),
			})
			continue
		}
		c.metrics.Add(metrics.RealtimeMessages, 1)

		switch envelope.Type {
		case TypePing:
			reply, _ := json.Marshal(Envelope{
				Type:      TypePong,
				Timestamp: c.sched.Clock().Now().UTC().Format(time.RFC3339),
			})
			if err := c.write(conn, reply); err != nil {
				c.log.Warn("pong send failed", map[string]interface{}{"room": c.room})
			}
			continue
		case TypePong:
			conn.SetReadDeadline(time.Now().Add(pongWait))
			continue
		}

		if c.dispatch != nil {
			c.dispatch(envelope)
		}
	}
}

// pingLoop keeps the transport alive with protocol pings until the
// connection's read loop exits.
func (c *Channel) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleDisconnect reacts to a read failure. Deliberate teardown
// (pause, close) keeps its status; anything else is unexpected and
// enters the reconnect schedule.
func (c *Channel) handleDisconnect(conn *websocket.Conn, err error) {
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	deliberate := c.paused || c.closed
	c.mu.Unlock()

	if deliberate {
		return
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.log.Warn("connection lost", map[string]interface{}{
			"room":  c.room,
			"error": err.Error(),
		})
	}
	c.scheduleReconnect()
}

// scheduleReconnect arms the next attempt with delay baseDelay times
// the attempt number. Past maxAttempts the channel settles on
// disconnected and stays there until an explicit Connect.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.paused || c.closed {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	if attempt > c.maxAttempts {
		c.status = HealthDisconnected
		c.reconnect = nil
		c.mu.Unlock()
		c.log.Error("reconnect attempts exhausted", nil, map[string]interface{}{
			"room":     c.room,
			"attempts": c.maxAttempts,
		})
		return
	}
	c.status = HealthError
	c.mu.Unlock()

	delay := c.baseDelay * time.Duration(attempt)
	c.metrics.Add(metrics.RealtimeReconnects, 1)
	c.log.Info("scheduling reconnect", map[string]interface{}{
		"room":    c.room,
		"attempt": attempt,
		"delay":   delay.String(),
	})

	handle := c.sched.After(delay, c.dial)
	c.mu.Lock()
	c.reconnect = handle
	c.mu.Unlock()
}

func (c *Channel) write(conn *websocket.Conn, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Channel) setStatus(status Health) {
	c.mu.Lock()
	if !c.closed && !c.paused {
		c.status = status
	}
	c.mu.Unlock()
}
