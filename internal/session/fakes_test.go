package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/warpcast/internal/signaling"
)

type fakeEngine struct {
	mu      sync.Mutex
	state   ConnectionState
	tracks  []LocalTrack
	local   signaling.Descriptor
	remote  []signaling.Descriptor
	onTrack func(RemoteTrack)
	closes  atomic.Int32

	setRemoteErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{state: ConnectionStateNew}
}

func (e *fakeEngine) CreateOffer() (signaling.Descriptor, error) {
	return signaling.Descriptor{Type: signaling.DescriptorOffer, SDP: "v=0 offer"}, nil
}

func (e *fakeEngine) CreateAnswer() (signaling.Descriptor, error) {
	return signaling.Descriptor{Type: signaling.DescriptorAnswer, SDP: "v=0 answer"}, nil
}

func (e *fakeEngine) SetLocalDescription(d signaling.Descriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local = d
	return nil
}

func (e *fakeEngine) SetRemoteDescription(d signaling.Descriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.setRemoteErr != nil {
		return e.setRemoteErr
	}
	e.remote = append(e.remote, d)
	e.state = ConnectionStateConnecting
	return nil
}

func (e *fakeEngine) LocalDescription(ctx context.Context) (signaling.Descriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local, nil
}

func (e *fakeEngine) AddTrack(t LocalTrack) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = append(e.tracks, t)
	return nil
}

func (e *fakeEngine) OnTrack(fn func(RemoteTrack)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrack = fn
}

func (e *fakeEngine) fireTrack(t RemoteTrack) {
	e.mu.Lock()
	fn := e.onTrack
	e.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

func (e *fakeEngine) ConnectionState() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *fakeEngine) setState(st ConnectionState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = st
}

func (e *fakeEngine) remoteDescriptions() []signaling.Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]signaling.Descriptor(nil), e.remote...)
}

func (e *fakeEngine) Close() error {
	e.closes.Add(1)
	e.setState(ConnectionStateClosed)
	return nil
}

var errFakeClosed = errors.New("fake channel closed")

type fakeChannel struct {
	inbox  chan string
	sent   chan string
	done   chan struct{}
	once   sync.Once
	closes atomic.Int32
}

func newFakeChannel(replies ...string) *fakeChannel {
	c := &fakeChannel{
		inbox: make(chan string, 8),
		sent:  make(chan string, 8),
		done:  make(chan struct{}),
	}
	for _, r := range replies {
		c.inbox <- r
	}
	return c
}

func (c *fakeChannel) Send(text string) error {
	select {
	case <-c.done:
		return errFakeClosed
	default:
	}
	c.sent <- text
	return nil
}

func (c *fakeChannel) Recv(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", errFakeClosed
	case text := <-c.inbox:
		return text, nil
	}
}

func (c *fakeChannel) Close() error {
	c.closes.Add(1)
	c.once.Do(func() { close(c.done) })
	return nil
}

// sentMessages drains what the session has sent so far.
func (c *fakeChannel) sentMessages() []string {
	var out []string
	for {
		select {
		case m := <-c.sent:
			out = append(out, m)
		default:
			return out
		}
	}
}

func (c *fakeChannel) dialer(dials *atomic.Int32) Dialer {
	return func(ctx context.Context, addr string) (Channel, error) {
		if dials != nil {
			dials.Add(1)
		}
		return c, nil
	}
}

type fakeLocalTrack struct {
	id    string
	kind  TrackKind
	ended atomic.Bool
}

func (t *fakeLocalTrack) ID() string      { return t.id }
func (t *fakeLocalTrack) Kind() TrackKind { return t.kind }

func (t *fakeLocalTrack) ReadyState() ReadyState {
	if t.ended.Load() {
		return ReadyStateEnded
	}
	return ReadyStateLive
}

type fakeSource struct {
	tracks []LocalTrack
	closes atomic.Int32
}

func (s *fakeSource) Tracks() []LocalTrack { return s.tracks }

func (s *fakeSource) Close() error {
	s.closes.Add(1)
	return nil
}

type fakeRemoteTrack struct {
	id    string
	kind  TrackKind
	ended chan struct{}
}

func newFakeRemoteTrack(id string, kind TrackKind) *fakeRemoteTrack {
	return &fakeRemoteTrack{id: id, kind: kind, ended: make(chan struct{})}
}

func (t *fakeRemoteTrack) ID() string             { return t.id }
func (t *fakeRemoteTrack) Kind() TrackKind        { return t.kind }
func (t *fakeRemoteTrack) Ended() <-chan struct{} { return t.ended }

type fakeRenderer struct {
	mu       sync.Mutex
	attached []string
	stops    atomic.Int32
}

func (r *fakeRenderer) Attach(t RemoteTrack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = append(r.attached, t.ID())
	return nil
}

func (r *fakeRenderer) Stop() error {
	r.stops.Add(1)
	return nil
}

func (r *fakeRenderer) attachedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.attached...)
}

// stateLog records every transition reported through Options.OnStateChange.
type stateLog struct {
	mu      sync.Mutex
	states  []State
	changed chan State
}

func newStateLog() *stateLog {
	return &stateLog{changed: make(chan State, 16)}
}

func (l *stateLog) record(st State) {
	l.mu.Lock()
	l.states = append(l.states, st)
	l.mu.Unlock()
	select {
	case l.changed <- st:
	default:
	}
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func (l *stateLog) contains(st State) bool {
	for _, s := range l.all() {
		if s == st {
			return true
		}
	}
	return false
}
