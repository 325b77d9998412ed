// Package transport terminates WebSocket connections and adapts them to
// the room engine's SessionHandle contract.
package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
)

// wsConn is the subset of *websocket.Conn the client needs, kept as an
// interface so the read/write pumps can be exercised against a fake.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Client wraps one WebSocket connection and implements
// types.SessionHandle. Writes go through a single buffered channel
// drained by writePump; a consumer too slow to keep up is disconnected
// rather than allowed to back up the router.
type Client struct {
	conn   wsConn
	roomID types.RoomID
	pwHash string

	send   chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	open bool
}

var _ types.SessionHandle = (*Client)(nil)

func newClient(conn wsConn, roomID types.RoomID, pwHash string) *Client {
	return &Client{
		conn:   conn,
		roomID: roomID,
		pwHash: pwHash,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
		open:   true,
	}
}

func (c *Client) Send(frame []byte) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if !open {
		return
	}

	select {
	case c.send <- frame:
	default:
		logging.Warn(context.Background(), "transport: send buffer full, disconnecting slow consumer",
			zap.String("room_id", string(c.roomID)))
		c.Close()
	}
}

func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Client) RoomID() types.RoomID   { return c.roomID }
func (c *Client) PasswordHash() string   { return c.pwHash }

// Close is idempotent: the underlying connection is closed exactly
// once, however many times Close is called concurrently.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.open = false
		c.mu.Unlock()
		close(c.closed)
		_ = c.conn.Close()
	})
}

// writePump drains the send channel onto the connection until the
// client is closed. Runs in its own goroutine for the life of the
// connection.
func (c *Client) writePump() {
	defer c.Close()
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(textMessageType, frame); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
