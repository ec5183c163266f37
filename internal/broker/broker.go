package broker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BioHazard786/warpcast/internal/metrics"
	"github.com/BioHazard786/warpcast/internal/signaling"
	"github.com/gorilla/websocket"
)

// ErrInvalidRole is reported to a connection whose first message is not a
// known role token.
var ErrInvalidRole = errors.New("invalid role")

// envelope is one relayed message and the connection it came from.
type envelope struct {
	from *Conn
	data []byte
}

// Broker pairs one sender with one receiver. It owns exactly two slots; all
// slot and queue state is touched only by the Run goroutine.
type Broker struct {
	slots map[signaling.Role]*slot

	register   chan *Conn
	unregister chan *Conn
	relay      chan envelope
	query      chan chan []SlotStatus

	// done is closed when Run returns.
	done chan struct{}

	metrics *metrics.Broker
	log     *slog.Logger
}

// New creates a broker. m may be nil.
func New(m *metrics.Broker, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broker{
		slots:      make(map[signaling.Role]*slot, len(signaling.Roles)),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		relay:      make(chan envelope),
		query:      make(chan chan []SlotStatus),
		done:       make(chan struct{}),
		metrics:    m,
		log:        logger.With("component", "broker"),
	}
	for _, role := range signaling.Roles {
		b.slots[role] = &slot{role: role}
	}
	return b
}

// Accept takes ownership of an upgraded websocket and starts its pumps. The
// first message on it decides which slot it is bound to.
func (b *Broker) Accept(ws *websocket.Conn) *Conn {
	c := newConn(b, ws)

	select {
	case <-b.done:
		c.shutdown()
		go c.writePump()
		return c
	default:
	}

	go c.writePump()
	go c.readPump()
	return c
}

// Slots returns the current state of both slots, or nil once the broker has
// stopped.
func (b *Broker) Slots() []SlotStatus {
	req := make(chan []SlotStatus, 1)
	select {
	case b.query <- req:
		return <-req
	case <-b.done:
		return nil
	}
}

// Done is closed when Run has returned.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Run is the broker's event loop. It is the single goroutine that mutates
// slots and queues, so binds, drains and relays are serialized.
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case c := <-b.register:
			b.bind(c)

		case c := <-b.unregister:
			b.unbind(c)

		case env := <-b.relay:
			b.forward(env)

		case req := <-b.query:
			req <- b.snapshot()

		case <-ctx.Done():
			for _, s := range b.slots {
				if s.conn != nil {
					s.conn.shutdown()
					s.conn = nil
				}
			}
			b.publish()
			b.log.Info("broker stopped")
			return
		}
	}
}

// bind installs c in its role's slot, closing any connection it replaces,
// then drains the slot's queue to c before anything else from c is handled.
func (b *Broker) bind(c *Conn) {
	s := b.slots[c.role]

	if old := s.conn; old != nil {
		b.log.Warn("superseding bound connection", "role", c.role, "old", old.remote, "new", c.remote)
		old.shutdown()
		s.conn = nil
		b.metrics.Superseded(c.role.String())
	}

	s.conn = c
	b.metrics.Bound(c.role.String())
	b.log.Info("client bound", "role", c.role, "remote", c.remote, "queued", len(s.pending))

	pending := s.pending
	s.pending = nil
	for i, msg := range pending {
		if !c.enqueue(msg) {
			// c died during the drain; keep the rest queued for the next binding.
			s.conn = nil
			s.pending = pending[i:]
			break
		}
	}
	b.publish()
}

// unbind empties c's slot if c is still the bound connection.
func (b *Broker) unbind(c *Conn) {
	c.shutdown()

	s := b.slots[c.role]
	if s.conn != c {
		b.log.Debug("superseded client disconnected", "role", c.role, "remote", c.remote)
		return
	}

	s.conn = nil
	b.log.Info("client disconnected", "role", c.role, "remote", c.remote)
	b.publish()
}

// forward relays a message to the opposite role, queueing it when that role
// has no connection.
func (b *Broker) forward(env envelope) {
	from := env.from
	if b.slots[from.role].conn != from {
		b.log.Debug("dropping message from superseded client", "role", from.role, "remote", from.remote)
		return
	}

	target := b.slots[from.role.Opposite()]
	if target.conn != nil {
		if target.conn.enqueue(env.data) {
			b.metrics.Relayed(target.role.String())
			return
		}
		// The target's writer already failed and its unregister is on the way.
		target.conn = nil
	}

	b.log.Warn(target.role.String()+" not connected, queueing message", "from", from.role)
	target.pending = append(target.pending, env.data)
	b.metrics.Queued(target.role.String())
	b.publish()
}

// reject answers a bad role declaration and closes the connection.
func (b *Broker) reject(c *Conn, err error) {
	b.log.Warn("rejecting client", "remote", c.remote, "error", err)
	b.metrics.Rejected()
	c.enqueue(signaling.EncodeError(err.Error()))
	c.shutdown()
}

func (b *Broker) snapshot() []SlotStatus {
	out := make([]SlotStatus, 0, len(signaling.Roles))
	for _, role := range signaling.Roles {
		out = append(out, b.slots[role].status())
	}
	return out
}

func (b *Broker) publish() {
	for _, s := range b.slots {
		b.metrics.SetSlot(s.role.String(), s.conn != nil, len(s.pending))
	}
}
