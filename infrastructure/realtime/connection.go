package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/domain/event"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Close codes sent to the client. 1005, 1006 and 1015 are reserved for local
// reporting and never go on the wire.
const (
	closeBufferFull  = websocket.CloseGoingAway
	closeWriteFailed = websocket.CloseInternalServerErr
)

var (
	errConnectionClosed = fmt.Errorf("connection closed")
	errBufferExceeded   = fmt.Errorf("connection buffer exceeded")
)

// outboundFrame is what subscribers receive for every room event.
type outboundFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Connection is one authenticated websocket. It is the event sink registered
// for every room the client joins. Writes go through a buffered channel
// drained by a single write loop.
type Connection struct {
	ID         string
	Capability domain.Capability

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func NewConnection(capability domain.Capability, ws *websocket.Conn, bufferSize int) *Connection {
	return &Connection{
		ID:         uuid.NewString(),
		Capability: capability,
		ws:         ws,
		send:       make(chan []byte, bufferSize),
		close:      make(chan struct{}),
	}
}

// Consume encodes a room event and queues it. A full buffer closes the connection.
func (c *Connection) Consume(_ context.Context, e event.DomainEvent) error {
	payload, err := json.Marshal(outboundFrame{Type: string(e.Name()), Data: e.Payload()})
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// Send never blocks.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return errConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.Close(closeBufferFull, "send buffer full")
		return errBufferExceeded
	}
}

// Close is safe to call from any goroutine, more than once.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) Done() <-chan struct{} {
	return c.close
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(closeWriteFailed, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(closeWriteFailed, "ping failed")
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
