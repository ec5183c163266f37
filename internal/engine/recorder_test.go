package engine

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type fakePacketSource struct {
	id    string
	kind  session.TrackKind
	mime  string
	ended chan struct{}
	subs  []func(*rtp.Packet)
}

func newFakePacketSource(id string, kind session.TrackKind, mime string) *fakePacketSource {
	return &fakePacketSource{id: id, kind: kind, mime: mime, ended: make(chan struct{})}
}

func (f *fakePacketSource) ID() string                     { return f.id }
func (f *fakePacketSource) Kind() session.TrackKind        { return f.kind }
func (f *fakePacketSource) Ended() <-chan struct{}         { return f.ended }
func (f *fakePacketSource) MimeType() string               { return f.mime }
func (f *fakePacketSource) ClockRate() uint32              { return 48000 }
func (f *fakePacketSource) Channels() uint16               { return 2 }
func (f *fakePacketSource) Subscribe(fn func(*rtp.Packet)) { f.subs = append(f.subs, fn) }

func (f *fakePacketSource) emit(pkt *rtp.Packet) {
	for _, fn := range f.subs {
		fn(pkt)
	}
}

type plainTrack struct{}

func (plainTrack) ID() string              { return "plain" }
func (plainTrack) Kind() session.TrackKind { return session.KindVideo }
func (plainTrack) Ended() <-chan struct{}  { return nil }

func TestRecorderSavesAudio(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, true, nil)

	audio := newFakePacketSource("a", session.KindAudio, webrtc.MimeTypeOpus)
	if err := rec.Attach(audio); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	payload := []byte{0xfc, 0x01, 0x02}
	audio.emit(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1, Timestamp: 960}, Payload: payload})

	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := filepath.Join(dir, "received_output.ogg")
	if got := rec.Outputs(); len(got) != 1 || got[0] != want {
		t.Fatalf("Outputs() = %v, want [%s]", got, want)
	}

	raw, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("OggS")) {
		t.Fatalf("output is not an ogg stream")
	}

	// The saved file plays back through the file source.
	s, err := openOgg(want)
	if err != nil {
		t.Fatalf("openOgg: %v", err)
	}
	defer s.Close()
	data, _, err := s.next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("read back %v, want %v", data, payload)
	}
}

func TestRecorderWithoutSaving(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, false, nil)

	video := newFakePacketSource("v", session.KindVideo, webrtc.MimeTypeVP8)
	if err := rec.Attach(video); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	video.emit(&rtp.Packet{Payload: []byte{1}})

	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Outputs(); len(got) != 0 {
		t.Errorf("Outputs() = %v, want none", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("recorder wrote %d files", len(entries))
	}
}

func TestRecorderRejects(t *testing.T) {
	rec := NewRecorder(t.TempDir(), false, nil)

	if err := rec.Attach(plainTrack{}); !errors.Is(err, ErrUnsupportedTrack) {
		t.Errorf("Attach(plain) = %v, want ErrUnsupportedTrack", err)
	}

	rec.Stop()
	rec.Stop()
	err := rec.Attach(newFakePacketSource("late", session.KindAudio, webrtc.MimeTypeOpus))
	if !errors.Is(err, ErrRecorderStopped) {
		t.Errorf("Attach after Stop = %v, want ErrRecorderStopped", err)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		kind session.TrackKind
		n    int
		want string
	}{
		{session.KindVideo, 1, "received_output.ivf"},
		{session.KindAudio, 1, "received_output.ogg"},
		{session.KindVideo, 2, "received_output-2.ivf"},
	}
	for _, tt := range tests {
		if got := outputName(tt.kind, tt.n); got != tt.want {
			t.Errorf("outputName(%s, %d) = %q, want %q", tt.kind, tt.n, got, tt.want)
		}
	}
}
