package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/warpcast/internal/signaling"
)

const (
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultPollInterval       = 100 * time.Millisecond
	DefaultKeepAliveInterval  = 1 * time.Second
)

// Options configures an orchestrator.
type Options struct {
	// ServerURL is the broker's websocket endpoint.
	ServerURL string

	// NegotiationTimeout bounds the wait for the peer's descriptor.
	NegotiationTimeout time.Duration

	// PollInterval is how often a local video track's liveness is checked.
	PollInterval time.Duration

	// KeepAliveInterval is how often the connection state is checked once
	// the session is active.
	KeepAliveInterval time.Duration

	// Dial opens the rendezvous channel. Defaults to signaling.Dial.
	Dial Dialer

	// OnStateChange is called on every transition, with the session's lock
	// held; it must not block or call back into the session.
	OnStateChange func(State)

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.NegotiationTimeout <= 0 {
		o.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Dial == nil {
		logger := o.Logger
		o.Dial = func(ctx context.Context, addr string) (Channel, error) {
			c, err := signaling.Dial(ctx, addr, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	return o
}

// session is the state machine shared by both orchestrators.
type session struct {
	role   signaling.Role
	opts   Options
	engine Engine
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	channel  Channel
	err      *Error
	reason   string
	stoppers []func() error

	teardownOnce sync.Once
	closing      chan struct{}
	closed       chan struct{}
}

func newSession(role signaling.Role, engine Engine, opts Options) *session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		role:    role,
		opts:    opts,
		engine:  engine,
		log:     opts.Logger.With("role", role),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateNegotiating,
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// bind ties the session's lifetime to the caller's context.
func (s *session) bind(parent context.Context) context.Context {
	stop := context.AfterFunc(parent, s.cancel)
	go func() {
		<-s.closed
		stop()
	}()
	return s.ctx
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that ended the session, nil for a clean close.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// Reason says what closed the session.
func (s *session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done is closed once the session reached StateClosed.
func (s *session) Done() <-chan struct{} {
	return s.closed
}

// Close tears the session down from outside; later calls are no-ops.
func (s *session) Close() error {
	s.teardown("closed by caller")
	return nil
}

func (s *session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.log.Debug("state change", "from", s.state, "to", st)
	s.state = st
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st)
	}
}

// onTeardown registers fn to run during teardown, before the engine closes.
func (s *session) onTeardown(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stoppers = append(s.stoppers, fn)
}

// activate moves NEGOTIATING to ACTIVE. It reports false when teardown has
// already begun.
func (s *session) activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNegotiating {
		return false
	}
	s.setStateLocked(StateActive)
	return true
}

// fail records the session's first failure and returns it.
func (s *session) fail(phase Phase, err error, details ...string) *Error {
	var e *Error
	if len(details) > 0 {
		e = WrapError(phase, err, details[0])
	} else {
		e = NewError(phase, err)
	}

	s.mu.Lock()
	if s.err == nil {
		s.err = e
	}
	s.mu.Unlock()

	if errors.Is(err, ErrCancelled) {
		s.log.Info("session cancelled", "phase", phase)
	} else {
		s.log.Error("session failed", "phase", phase, "error", err)
	}
	return e
}

// result is what Run returns: the recorded failure or nil.
func (s *session) result() error {
	return s.Err()
}

// finish waits for a teardown started elsewhere to complete, then reports
// the result.
func (s *session) finish() error {
	<-s.closed
	return s.result()
}

// connect opens the rendezvous channel and declares the session's role.
func (s *session) connect(ctx context.Context) (Channel, error) {
	ch, err := s.opts.Dial(ctx, s.opts.ServerURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail(PhaseConnect, ErrCancelled)
		}
		return nil, s.fail(PhaseConnect, channelErr(err), s.opts.ServerURL)
	}

	s.mu.Lock()
	if s.state != StateNegotiating {
		s.mu.Unlock()
		ch.Close()
		return nil, s.fail(PhaseConnect, ErrCancelled)
	}
	s.channel = ch
	s.mu.Unlock()

	if err := ch.Send(s.role.String()); err != nil {
		return nil, s.fail(PhaseRoleDeclare, channelErr(err))
	}
	s.log.Info("connected to broker", "url", s.opts.ServerURL)
	return ch, nil
}

// await waits for exactly one message, bounded by the negotiation timeout.
func (s *session) await(ctx context.Context, ch Channel, phase Phase) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.NegotiationTimeout)
	defer cancel()

	text, err := ch.Recv(waitCtx)
	switch {
	case err == nil:
		return text, nil
	case ctx.Err() != nil:
		return "", s.fail(phase, ErrCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return "", s.fail(phase, ErrNegotiationTimeout,
			fmt.Sprintf("no reply within %s", s.opts.NegotiationTimeout))
	default:
		return "", s.fail(phase, channelErr(err))
	}
}

// send writes one descriptor to the channel.
func (s *session) send(ch Channel, phase Phase, d signaling.Descriptor) error {
	text, err := d.Encode()
	if err != nil {
		return s.fail(phase, err)
	}
	if err := ch.Send(text); err != nil {
		return s.fail(phase, channelErr(err))
	}
	s.log.Info("sent descriptor", "type", d.Type)
	return nil
}

// keepAlive polls the engine's connection state until it is terminal, the
// session is torn down elsewhere, or ctx ends.
func (s *session) keepAlive(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		if st := s.engine.ConnectionState(); st.Terminal() {
			if st == ConnectionStateFailed {
				s.fail(PhaseActive, ErrConnectionFailed)
			} else {
				s.log.Info("peer connection closed")
			}
			s.teardown("peer connection " + st.String())
			return s.result()
		}

		select {
		case <-s.closing:
			return s.finish()
		case <-ctx.Done():
			s.teardown("cancelled")
			return s.result()
		case <-ticker.C:
		}
	}
}

// watchChannel reads the rendezvous channel while the session is active and
// tears the session down if the channel drops. Stray messages are ignored.
func (s *session) watchChannel(ctx context.Context) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return
	}

	for {
		text, err := ch.Recv(ctx)
		if err == nil {
			s.log.Debug("ignoring signaling message while active", "size", len(text))
			continue
		}

		select {
		case <-s.closing:
			return
		default:
		}
		if ctx.Err() != nil {
			return
		}
		s.fail(PhaseActive, channelErr(err))
		s.teardown("signaling channel closed")
		return
	}
}

// teardown releases the engine and channel exactly once. Concurrent callers
// block until the first one has finished.
func (s *session) teardown(reason string) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		if s.state == StateActive {
			s.setStateLocked(StateClosing)
		}
		ch := s.channel
		stoppers := s.stoppers
		s.mu.Unlock()

		close(s.closing)
		s.cancel()
		s.log.Info("tearing down", "reason", reason)

		for _, stop := range stoppers {
			if err := stop(); err != nil {
				s.log.Warn("teardown hook failed", "error", err)
			}
		}
		if err := s.engine.Close(); err != nil {
			s.log.Warn("closing engine failed", "error", err)
		}
		if ch != nil {
			if err := ch.Close(); err != nil {
				s.log.Warn("closing signaling channel failed", "error", err)
			}
		}

		s.mu.Lock()
		s.setStateLocked(StateClosed)
		s.mu.Unlock()
		close(s.closed)
	})
}
