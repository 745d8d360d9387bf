package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait bounds a single snapshot or ping write.
	writeWait = 10 * time.Second

	// pongWait is how long a silent client is kept before the read fails.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is small: clients only send pongs and close frames.
	maxMessageSize = 4 * 1024
)

// Client is one websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// send holds at most the one pending snapshot. The hub closes it on
	// unregister or shutdown, which ends writePump.
	send chan []byte

	// writerDone is closed when writePump has stopped using conn.
	writerDone chan struct{}
}

// NewClient registers conn with the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 1),
		writerDone: make(chan struct{}),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		close(client.send)
	}
	return client
}

// Serve handles conn on h until it closes. Use it as the handler for
// websocket.New.
func (h *Hub) Serve(conn *websocket.Conn) {
	NewClient(h, conn).Run()
}

// Run starts the pumps and blocks until both have stopped. The fiber
// handler returns right after Run and the conn is then recycled, so the
// writer must be finished with it first.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
	<-c.writerDone
}

// offer queues frame, replacing a pending one. Only the hub's Run
// goroutine calls it, so after a drain the slot is free. It reports
// whether a frame was replaced.
func (c *Client) offer(frame []byte) bool {
	replaced := false
	select {
	case <-c.send:
		replaced = true
	default:
	}
	select {
	case c.send <- frame:
	default:
	}
	return replaced
}

// readPump only watches for disconnects and pongs. On exit it
// unregisters, which closes send and so stops the writer.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			// Run already closed send on shutdown.
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection and the one that
// closes it. Closing also unblocks readPump after a write failure.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
