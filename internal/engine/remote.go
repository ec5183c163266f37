package engine

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is a received track. Packets are fanned out to subscribers
// from a single read loop; Ended closes when the stream stops.
type RemoteTrack struct {
	track *webrtc.TrackRemote
	kind  session.TrackKind

	mu   sync.Mutex
	subs []func(*rtp.Packet)

	packets atomic.Uint64
	ended   chan struct{}
}

func newRemoteTrack(tr *webrtc.TrackRemote) *RemoteTrack {
	kind := session.KindAudio
	if tr.Kind() == webrtc.RTPCodecTypeVideo {
		kind = session.KindVideo
	}
	return &RemoteTrack{
		track: tr,
		kind:  kind,
		ended: make(chan struct{}),
	}
}

func (t *RemoteTrack) ID() string              { return t.track.ID() }
func (t *RemoteTrack) Kind() session.TrackKind { return t.kind }
func (t *RemoteTrack) Ended() <-chan struct{}  { return t.ended }
func (t *RemoteTrack) MimeType() string        { return t.track.Codec().MimeType }
func (t *RemoteTrack) ClockRate() uint32       { return t.track.Codec().ClockRate }
func (t *RemoteTrack) Channels() uint16        { return t.track.Codec().Channels }
func (t *RemoteTrack) Packets() uint64         { return t.packets.Load() }

// Subscribe registers fn for every packet read after the call.
func (t *RemoteTrack) Subscribe(fn func(*rtp.Packet)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}

func (t *RemoteTrack) read(log *slog.Logger) {
	defer close(t.ended)

	for {
		pkt, _, err := t.track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("remote track read stopped", "id", t.ID(), "error", err)
			}
			return
		}
		t.packets.Add(1)

		t.mu.Lock()
		subs := t.subs
		t.mu.Unlock()
		for _, fn := range subs {
			fn(pkt)
		}
	}
}
