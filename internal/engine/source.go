package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const streamID = "warpcast"

var ErrUnsupportedSource = errors.New("unsupported source file")

// FileTrack streams samples from a stored file. It reports ReadyStateEnded
// once the file is exhausted or the source is closed.
type FileTrack struct {
	id      string
	kind    session.TrackKind
	path    string
	track   *webrtc.TrackLocalStaticSample
	samples sampleReader
	ended   atomic.Bool
	log     *slog.Logger
}

func (t *FileTrack) ID() string              { return t.id }
func (t *FileTrack) Kind() session.TrackKind { return t.kind }
func (t *FileTrack) Path() string            { return t.path }
func (t *FileTrack) Codec() string           { return t.track.Codec().MimeType }

func (t *FileTrack) ReadyState() session.ReadyState {
	if t.ended.Load() {
		return session.ReadyStateEnded
	}
	return session.ReadyStateLive
}

// pump writes samples at the file's pace until EOF or done.
func (t *FileTrack) pump(done <-chan struct{}) {
	defer t.ended.Store(true)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var sent int
	for {
		select {
		case <-done:
			return
		case <-timer.C:
		}

		data, dur, err := t.samples.next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				t.log.Info("source finished", "track", t.id, "path", t.path, "samples", sent)
			case !t.ended.Load():
				t.log.Warn("reading source failed", "track", t.id, "error", err)
			}
			return
		}

		if err := t.track.WriteSample(media.Sample{Data: data, Duration: dur}); err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				t.log.Warn("writing sample failed", "track", t.id, "error", err)
			}
			return
		}
		sent++
		timer.Reset(dur)
	}
}

// FileSource offers one track per stored media file: .ivf files carry video
// and .ogg/.opus files carry Opus audio.
type FileSource struct {
	tracks []*FileTrack
	closed atomic.Bool
}

func NewFileSource(paths []string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src := &FileSource{}
	for i, path := range paths {
		t, err := openTrack(i, path, logger)
		if err != nil {
			src.Close()
			return nil, err
		}
		src.tracks = append(src.tracks, t)
		logger.Debug("opened source", "path", path, "kind", t.kind, "codec", t.track.Codec().MimeType)
	}
	return src, nil
}

func openTrack(i int, path string, logger *slog.Logger) (*FileTrack, error) {
	var (
		samples sampleReader
		kind    session.TrackKind
		mime    string
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ivf":
		s, m, err := openIVF(path)
		if err != nil {
			return nil, err
		}
		samples, kind, mime = s, session.KindVideo, m
	case ".ogg", ".opus":
		s, err := openOgg(path)
		if err != nil {
			return nil, err
		}
		samples, kind, mime = s, session.KindAudio, webrtc.MimeTypeOpus
	default:
		return nil, fmt.Errorf("%w: %s (want .ivf or .ogg)", ErrUnsupportedSource, path)
	}

	id := fmt.Sprintf("%s-%d", kind, i)
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, id, streamID)
	if err != nil {
		samples.Close()
		return nil, err
	}

	return &FileTrack{
		id:      id,
		kind:    kind,
		path:    path,
		track:   track,
		samples: samples,
		log:     logger,
	}, nil
}

func (s *FileSource) Tracks() []session.LocalTrack {
	out := make([]session.LocalTrack, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

// Files returns the tracks with their file details.
func (s *FileSource) Files() []*FileTrack {
	return append([]*FileTrack(nil), s.tracks...)
}

// Close ends every track and releases its file.
func (s *FileSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, t := range s.tracks {
		t.ended.Store(true)
		if err := t.samples.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
