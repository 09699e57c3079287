// Package server manages individual WebSocket clients, handling read/write
// pumps and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Client represents one WebSocket connection. Its ID is the opaque
// connection identifier handed to the event router.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	closeOnce      sync.Once
}

// NewClient creates a new Client with a fresh connection identifier. The
// client's send channel is buffered to absorb short bursts of broadcasts.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, maxMessageSize int64) *Client {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		hub:            hub,
		addr:           addr,
		maxMessageSize: maxMessageSize,
	}
}

// kick closes the underlying connection once. The read pump then fails and
// unregisters the client through the normal path.
func (c *Client) kick() {
	c.closeOnce.Do(func() {
		if c.conn == nil {
			return
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.hub.logger.Warn("error closing connection", "conn", c.id, "error", err)
		}
	})
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Warn("error setting initial read deadline", "conn", c.id, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.hub.logger.Warn("error setting read deadline in pong handler", "conn", c.id, "error", err)
		}
		return nil
	})
}

// handleReadError logs the read failure at a level matching how expected it
// is. Every read error ends the read loop.
func (c *Client) handleReadError(err error) {
	logger := c.hub.logger.With("conn", c.id, "addr", c.addr)

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logger.Warn("message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		logger.Debug("client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		logger.Debug("client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		logger.Warn("unexpected websocket close", "error", err)
	default:
		logger.Warn("websocket read error", "error", err)
	}
}

// processMessage decodes one inbound frame and hands it to the event handler.
// Frames that are not a valid envelope are dropped.
func (c *Client) processMessage(rawMessage []byte) bool {
	var env Envelope
	if err := json.Unmarshal(rawMessage, &env); err != nil {
		c.hub.logger.Debug("invalid frame", "conn", c.id, "error", err)
		return false
	}
	if env.Event == "" {
		c.hub.logger.Debug("frame without event name", "conn", c.id)
		return false
	}

	c.hub.dispatch(c.id, env)
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.kick()
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.kick()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.hub.logger.Debug("error setting write deadline", "conn", c.id, "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.hub.logger.Warn("error writing message", "conn", c.id, "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.hub.logger.Debug("error writing close message", "conn", c.id, "error", err)
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.hub.logger.Debug("error setting write deadline for ping", "conn", c.id, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.hub.logger.Debug("error writing ping", "conn", c.id, "error", err)
		return false
	}
	return true
}
