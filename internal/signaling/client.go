package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/BioHazard786/warpcast/internal/dns"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 64 * 1024
	handshakeTimeout = 10 * time.Second
)

// ErrClosed is returned once the connection to the broker is gone.
var ErrClosed = errors.New("signaling channel closed")

// Client is one rendezvous channel: an ordered text-message connection to
// the broker.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	log       *slog.Logger

	incoming chan string
	outgoing chan string
	done     chan struct{}
	flushed  chan struct{}

	mu      sync.Mutex
	readErr error

	closeOnce sync.Once
}

// NewClient creates a new signaling client
func NewClient(serverURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		serverURL: serverURL,
		log:       logger.With("component", "signaling"),
		incoming:  make(chan string, 16),
		outgoing:  make(chan string, 16),
		done:      make(chan struct{}),
		flushed:   make(chan struct{}),
	}
}

// Dial creates a client and connects it.
func Dial(ctx context.Context, serverURL string, logger *slog.Logger) (*Client, error) {
	c := NewClient(serverURL, logger)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect establishes the WebSocket connection to the broker.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := websocket.Dialer{
		NetDialContext:   dns.NetDialContext,
		HandshakeTimeout: handshakeTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.log.Debug("connected to broker", "url", u.String())

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read failed", "error", err)
			}
			return
		}

		select {
		case c.incoming <- string(data):
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		close(c.flushed)
	}()

	for {
		select {
		case message := <-c.outgoing:
			if err := c.write(message); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.drainOutgoing()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drainOutgoing flushes whatever was queued before Close so a trailing Send
// is not lost.
func (c *Client) drainOutgoing() {
	for {
		select {
		case message := <-c.outgoing:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(message string) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

// Send queues a text message for the broker.
func (c *Client) Send(text string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- text:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Recv waits for the next message. It returns ctx.Err() when ctx ends first
// and ErrClosed once the connection is gone.
func (c *Client) Recv(ctx context.Context) (string, error) {
	select {
	case msg, ok := <-c.incoming:
		if !ok {
			return "", c.closedErr()
		}
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil && !websocket.IsCloseError(c.readErr, websocket.CloseNormalClosure) {
		return fmt.Errorf("%w: %v", ErrClosed, c.readErr)
	}
	return ErrClosed
}

// Close sends a close frame and releases the connection. It is safe to call
// more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		select {
		case <-c.flushed:
		case <-time.After(writeWait):
		}
		c.conn.Close()
	})
	return nil
}
