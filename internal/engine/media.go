package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// opusClockRate is the fixed Opus sample clock.
const opusClockRate = 48000

var ErrUnsupportedCodec = errors.New("unsupported codec")

// sampleReader yields consecutive media samples and their durations.
type sampleReader interface {
	next() ([]byte, time.Duration, error)
	Close() error
}

type ivfSamples struct {
	f     *os.File
	r     *ivfreader.IVFReader
	frame time.Duration
}

// openIVF opens an IVF file and returns its reader and codec mime type.
func openIVF(path string) (*ivfSamples, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	r, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}

	var mime string
	switch header.FourCC {
	case "VP80":
		mime = webrtc.MimeTypeVP8
	case "VP90":
		mime = webrtc.MimeTypeVP9
	case "AV01":
		mime = webrtc.MimeTypeAV1
	default:
		f.Close()
		return nil, "", fmt.Errorf("%w: %s fourcc %q", ErrUnsupportedCodec, path, header.FourCC)
	}
	if header.TimebaseDenominator == 0 || header.TimebaseNumerator == 0 {
		f.Close()
		return nil, "", fmt.Errorf("%s: invalid timebase %d/%d", path,
			header.TimebaseNumerator, header.TimebaseDenominator)
	}

	frame := time.Duration(float64(time.Second) *
		float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	return &ivfSamples{f: f, r: r, frame: frame}, mime, nil
}

func (s *ivfSamples) next() ([]byte, time.Duration, error) {
	frame, _, err := s.r.ParseNextFrame()
	if err != nil {
		return nil, 0, err
	}
	return frame, s.frame, nil
}

func (s *ivfSamples) Close() error { return s.f.Close() }

type oggSamples struct {
	f    *os.File
	r    *oggreader.OggReader
	last uint64
}

var opusTags = []byte("OpusTags")

func openOgg(path string) (*oggSamples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &oggSamples{f: f, r: r}, nil
}

func (s *oggSamples) next() ([]byte, time.Duration, error) {
	for {
		page, header, err := s.r.ParseNextPage()
		if err != nil {
			return nil, 0, err
		}
		if bytes.HasPrefix(page, opusTags) {
			continue
		}

		var count uint64
		if header.GranulePosition > s.last {
			count = header.GranulePosition - s.last
		}
		s.last = header.GranulePosition
		return page, time.Duration(count) * time.Second / opusClockRate, nil
	}
}

func (s *oggSamples) Close() error { return s.f.Close() }
