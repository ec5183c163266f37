package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/BioHazard786/warpcast/internal/signaling"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for SDP with gathered candidates
)

// Conn is one client connection to the broker.
type Conn struct {
	broker *Broker
	ws     *websocket.Conn
	remote string

	// role is set by readPump before the conn is registered and never
	// changes afterwards.
	role signaling.Role

	// outbox is unbounded so the broker loop never blocks on a slow peer.
	mu      sync.Mutex
	outbox  [][]byte
	closing bool
	wake    chan struct{}
}

func newConn(b *Broker, ws *websocket.Conn) *Conn {
	return &Conn{
		broker: b,
		ws:     ws,
		remote: ws.RemoteAddr().String(),
		wake:   make(chan struct{}, 1),
	}
}

// enqueue appends msg to the outbox. It reports false once the connection
// is closing; nothing is delivered after that.
func (c *Conn) enqueue(msg []byte) bool {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return false
	}
	c.outbox = append(c.outbox, msg)
	c.mu.Unlock()

	c.notify()
	return true
}

// shutdown stops accepting messages; the writer flushes what is queued,
// sends a close frame and closes the socket.
func (c *Conn) shutdown() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	c.notify()
}

func (c *Conn) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) take() ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.outbox
	c.outbox = nil
	return msgs, c.closing
}

// readPump reads the role declaration, registers the connection and then
// hands every further message to the broker loop.
//
// The broker's channels are unbuffered, so events from one connection reach
// the loop in the order they were read.
func (c *Conn) readPump() {
	registered := false
	defer func() {
		if registered {
			select {
			case c.broker.unregister <- c:
			case <-c.broker.done:
			}
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.broker.log.Debug("client left before declaring a role", "remote", c.remote, "error", err)
		c.shutdown()
		return
	}

	role, err := signaling.ParseRole(string(data))
	if err != nil {
		c.broker.reject(c, fmt.Errorf("%w: %q", ErrInvalidRole, truncate(string(data), 32)))
		c.drainUntilClosed()
		return
	}
	c.role = role

	select {
	case c.broker.register <- c:
		registered = true
	case <-c.broker.done:
		c.shutdown()
		return
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.broker.log.Warn("read error", "role", c.role, "remote", c.remote, "error", err)
			}
			return
		}

		select {
		case c.broker.relay <- envelope{from: c, data: data}:
		case <-c.broker.done:
			return
		}
	}
}

// drainUntilClosed keeps reading so the close handshake completes after a
// rejection; the writer closes the socket which ends the loop.
func (c *Conn) drainUntilClosed() {
	c.ws.SetReadDeadline(time.Now().Add(writeWait))
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps the outbox to the websocket connection.
//
// A goroutine running writePump is started for each connection. It is the
// only writer on the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.wake:
			msgs, closing := c.take()
			for _, msg := range msgs {
				c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
					c.broker.log.Debug("write error", "remote", c.remote, "error", err)
					c.shutdown()
					return
				}
			}
			if closing {
				c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
