package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/viettienlv97/game-server/internal/auth"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound frames buffered per connection before it is dropped
	sendBuffer = 256
)

// Close codes sent before the server drops a socket.
const (
	CloseInternalError = 4000
	CloseAuthFailed    = 4001
)

// Connection is one authenticated socket. It maps to at most one
// (game, table) context.
type Connection struct {
	conn     *websocket.Conn
	identity auth.Identity
	logger   *log.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	mu      sync.RWMutex
	gameID  string
	tableID string

	alive     atomic.Bool
	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, id auth.Identity, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:     conn,
		identity: id,
		logger:   logger.WithPrefix("conn").With("user", id.UserID),
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendBuffer),
	}
	c.alive.Store(true)
	return c
}

// UserID returns the authenticated user behind the connection.
func (c *Connection) UserID() string { return c.identity.UserID }

// Context returns the game and table the connection is attached to.
func (c *Connection) Context() (gameID, tableID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID, c.tableID
}

// SetContext attaches the connection to a game at a table.
func (c *Connection) SetContext(gameID, tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameID, c.tableID = gameID, tableID
}

// ClearContext detaches the connection from its table.
func (c *Connection) ClearContext() {
	c.SetContext("", "")
}

// follow moves the connection to gameID if it sits at tableID.
func (c *Connection) follow(tableID, gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tableID == tableID {
		c.gameID = gameID
	}
}

// Send queues a frame. Sends to a closed connection are dropped; a
// connection whose buffer is full is closed.
func (c *Connection) Send(frame []byte) bool {
	full := false
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return false
	}
	select {
	case c.send <- frame:
	default:
		full = true
	}
	c.sendMu.Unlock()

	if full {
		c.logger.Warn("Connection send buffer full, closing connection")
		c.Close()
		return false
	}
	return true
}

// Close tears the connection down. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		_ = c.conn.Close()
	})
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// readPump feeds every inbound frame to handle, in order, until the socket
// fails or is closed.
func (c *Connection) readPump(handle func(*Connection, []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		handle(c, data)
	}
}

// writePump is the only writer of data frames.
func (c *Connection) writePump() {
	defer func() { _ = c.conn.Close() }()

	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.logger.Debug("Failed to write message", "error", err)
			c.Close()
			return
		}
	}
}

// closeWith sends a close frame with code and reason, then drops the socket.
func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
