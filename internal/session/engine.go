package session

import (
	"context"

	"github.com/BioHazard786/warpcast/internal/signaling"
)

// ConnectionState mirrors the RTC engine's peer connection state.
type ConnectionState int

const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

// Terminal reports whether no further media can flow in this state.
func (s ConnectionState) Terminal() bool {
	return s == ConnectionStateClosed || s == ConnectionStateFailed
}

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	}
	return "unknown"
}

// ReadyState is a local track's liveness.
type ReadyState int

const (
	ReadyStateLive ReadyState = iota
	ReadyStateEnded
)

type TrackKind string

const (
	KindVideo TrackKind = "video"
	KindAudio TrackKind = "audio"
)

// LocalTrack is a media track produced by a capture source.
type LocalTrack interface {
	ID() string
	Kind() TrackKind
	ReadyState() ReadyState
}

// RemoteTrack is a media track received from the peer. Ended is closed when
// the stream terminates.
type RemoteTrack interface {
	ID() string
	Kind() TrackKind
	Ended() <-chan struct{}
}

// Source reports the tracks available for offering.
type Source interface {
	Tracks() []LocalTrack
	Close() error
}

// Renderer consumes received tracks. Stop is called once on teardown.
type Renderer interface {
	Attach(RemoteTrack) error
	Stop() error
}

// Engine is the RTC engine a session drives.
type Engine interface {
	CreateOffer() (signaling.Descriptor, error)
	CreateAnswer() (signaling.Descriptor, error)
	SetLocalDescription(signaling.Descriptor) error
	SetRemoteDescription(signaling.Descriptor) error
	// LocalDescription returns the description to send, once it is complete.
	LocalDescription(ctx context.Context) (signaling.Descriptor, error)
	AddTrack(LocalTrack) error
	OnTrack(func(RemoteTrack))
	ConnectionState() ConnectionState
	Close() error
}

// Channel is an ordered text-message connection to the broker.
type Channel interface {
	Send(text string) error
	Recv(ctx context.Context) (string, error)
	Close() error
}

// Dialer opens a Channel to the broker at addr.
type Dialer func(ctx context.Context, addr string) (Channel, error)
