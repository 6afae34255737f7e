package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Client wraps a websocket connection bound to one user. Writes are
// serialized through a mutex because gorilla connections allow only one
// concurrent writer.
type Client struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

// NewClient creates a client for an upgraded websocket connection
func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
	}
}

// UserID returns the user this connection belongs to
func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) WriteEnvelope(envelope Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(envelope)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// ReadLoop consumes inbound frames until the peer disconnects. The server
// pushes state; inbound payloads are discarded. Blocks until the connection
// drops, then the caller unregisters the client.
func (c *Client) ReadLoop() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go c.pingLoop(done)
	defer close(done)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) pingLoop(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
