package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const outputBase = "received_output"

var ErrRecorderStopped = errors.New("recorder stopped")

// PacketSource is a received track whose RTP packets can be observed.
type PacketSource interface {
	session.RemoteTrack
	MimeType() string
	ClockRate() uint32
	Channels() uint16
	Subscribe(func(*rtp.Packet))
}

type rtpWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// Recorder is the receiving side's renderer. It tallies every attached track
// and, when saving, writes video to received_output.ivf and audio to
// received_output.ogg.
type Recorder struct {
	dir  string
	save bool
	log  *slog.Logger

	mu         sync.Mutex
	recordings []*recording
	counts     map[session.TrackKind]int
	stopped    bool
}

func NewRecorder(dir string, save bool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "."
	}
	return &Recorder{
		dir:    dir,
		save:   save,
		log:    logger,
		counts: make(map[session.TrackKind]int),
	}
}

func (r *Recorder) Attach(t session.RemoteTrack) error {
	src, ok := t.(PacketSource)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedTrack, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRecorderStopped
	}

	rec := &recording{id: src.ID(), kind: src.Kind(), log: r.log}
	r.counts[src.Kind()]++
	if r.save {
		path := filepath.Join(r.dir, outputName(src.Kind(), r.counts[src.Kind()]))
		w, err := openWriter(path, src)
		if err != nil {
			r.log.Warn("not saving track", "id", src.ID(), "error", err)
		} else {
			rec.w, rec.path = w, path
			r.log.Info("saving track", "id", src.ID(), "path", path)
		}
	}
	r.recordings = append(r.recordings, rec)
	src.Subscribe(rec.write)
	return nil
}

// Outputs lists the files written so far.
func (r *Recorder) Outputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.recordings {
		if rec.path != "" {
			out = append(out, rec.path)
		}
	}
	return out
}

// Stop closes every output file. Later calls are no-ops.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	recs := r.recordings
	r.mu.Unlock()

	var errs []error
	for _, rec := range recs {
		if err := rec.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func outputName(kind session.TrackKind, n int) string {
	ext := ".ogg"
	if kind == session.KindVideo {
		ext = ".ivf"
	}
	if n > 1 {
		return fmt.Sprintf("%s-%d%s", outputBase, n, ext)
	}
	return outputBase + ext
}

func openWriter(path string, src PacketSource) (rtpWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	mime := src.MimeType()
	if src.Kind() == session.KindVideo {
		return ivfwriter.New(path, ivfwriter.WithCodec(mime))
	}
	if !strings.EqualFold(mime, webrtc.MimeTypeOpus) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, mime)
	}

	rate, channels := src.ClockRate(), src.Channels()
	if rate == 0 {
		rate = opusClockRate
	}
	if channels == 0 {
		channels = 2
	}
	return oggwriter.New(path, rate, channels)
}

type recording struct {
	id   string
	kind session.TrackKind
	path string
	log  *slog.Logger

	mu      sync.Mutex
	w       rtpWriter
	packets int
	bytes   int
	closed  bool
}

func (rec *recording) write(pkt *rtp.Packet) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.closed {
		return
	}
	rec.packets++
	rec.bytes += len(pkt.Payload)

	if rec.w == nil {
		return
	}
	if err := rec.w.WriteRTP(pkt); err != nil {
		rec.log.Warn("writing track failed, no longer saving", "id", rec.id, "error", err)
		rec.w.Close()
		rec.w = nil
	}
}

func (rec *recording) close() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.closed = true
	rec.log.Info("track finished", "id", rec.id, "kind", rec.kind, "packets", rec.packets, "bytes", rec.bytes)

	if rec.w == nil {
		return nil
	}
	err := rec.w.Close()
	rec.w = nil
	return err
}
