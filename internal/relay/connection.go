package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bookmarket/internal/util"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 128
)

var (
	// ErrConnectionClosed is returned by Send after the connection shut down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned when a client reads too slowly to keep up.
	ErrSendBufferFull = errors.New("connection send buffer full")
)

// Connection wraps one websocket, typically one browser tab. Outbound frames
// go through a buffered channel drained by a single write loop, so Send is
// safe from any goroutine. The outbox channel is never closed; shutdown is
// signalled through done so a Send racing Close cannot panic.
type Connection struct {
	ID     string
	UserID string

	ws     *websocket.Conn
	outbox chan []byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewConnection constructs a Connection for the given user.
func NewConnection(userID string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:     util.NewID(),
		UserID: userID,
		ws:     ws,
		outbox: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. A full outbox means the client stopped
// reading, so the connection is torn down to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	select {
	case c.outbox <- payload:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrSendBufferFull
	}
}

// Close terminates the connection and stops the write loop. Safe to call
// more than once and concurrently with Send.
func (c *Connection) Close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.outbox:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
