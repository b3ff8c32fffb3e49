// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/chatroom/internal/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is the transport side of one chat connection. It owns the WebSocket
// and a bounded send buffer, and it is the chat.Sink the bus delivers to.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	id             chat.ConnID
	addr           string
	mu             sync.Mutex
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	log            *slog.Logger
}

// NewClient creates a Client for the given WebSocket connection. The send
// buffer size, read limit and rate limit come from cfg.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg Config) *Client {
	cfg = sanitizeConfig(cfg)
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	var log *slog.Logger
	if hub != nil {
		log = hub.log.With("addr", addr)
	} else {
		log = slog.Default().With("addr", addr)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
		log:            log,
	}
}

// ID returns the connection id assigned when the hub registered the client.
func (c *Client) ID() chat.ConnID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.id
}

// setID records the connection id. The router may deliver to the client
// before Connect returns, so the id is guarded like the send buffer.
func (c *Client) setID(id chat.ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.id = id
}

// GetSendChan returns the client's send channel for reading outgoing frames.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Deliver queues a frame for the write pump. It never blocks: a client whose
// buffer is full is considered too slow and its connection is closed, which
// makes the read pump unregister it.
func (c *Client) Deliver(frame []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.send <- frame:
		c.mu.Unlock()
		return true
	default:
	}
	id := c.id
	c.mu.Unlock()

	c.log.Warn("Send buffer full, closing slow client", "conn", id)
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing slow client", "error", err)
		}
	}
	return false
}

// closeSend closes the send buffer once; later deliveries are refused.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the read failure at a level matching its cause.
// Every read error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "conn", c.id, "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", "conn", c.id, "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "conn", c.id, "reason", err)
	case websocket.IsUnexpectedCloseError(err):
		c.log.Warn("Unexpected WebSocket close", "conn", c.id, "error", err)
	default:
		c.log.Warn("WebSocket read error", "conn", c.id, "error", err)
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the frame should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("Rate limit exceeded, discarding frame",
			"conn", c.id, "burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processFrame decodes a raw frame and hands it to the router. Malformed
// frames are dropped.
func (c *Client) processFrame(raw []byte) bool {
	in, err := chat.DecodeInbound(raw)
	if err != nil {
		c.log.Debug("Invalid frame", "conn", c.id, "error", err)
		return false
	}

	c.hub.router.Handle(c.hub.ctx, c.id, in)
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case frame, ok := <-c.send:
		return c.handleFrame(frame, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error closing connection in writePump", "error", err)
	}
}

// handleFrame writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing frame", "conn", c.id, "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error writing close message", "error", err)
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}
