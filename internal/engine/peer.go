// Package engine drives pion's WebRTC stack on behalf of a session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/warpcast/internal/logging"
	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/BioHazard786/warpcast/internal/signaling"
	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// pliInterval is how often a keyframe is requested on received video.
const pliInterval = 3 * time.Second

var (
	ErrUnsupportedTrack = errors.New("unsupported track")
	ErrNoLocalDesc      = errors.New("local description not set")
)

type Options struct {
	STUNServers []string
	Logger      *slog.Logger
}

// Peer implements session.Engine on a pion PeerConnection.
type Peer struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger

	state atomic.Int32

	mu       sync.Mutex
	gathered <-chan struct{}
	locals   []*FileTrack
	pumping  bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewPeer(opts Options) (*Peer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	settings := webrtc.SettingEngine{LoggerFactory: logging.NewPionFactory(logger)}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(settings),
	)

	var iceServers []webrtc.ICEServer
	if len(opts.STUNServers) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: opts.STUNServers})
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{
		pc:   pc,
		log:  logger,
		done: make(chan struct{}),
	}
	p.state.Store(int32(session.ConnectionStateNew))
	pc.OnConnectionStateChange(p.handleConnectionState)
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		p.log.Debug("ice connection state", "state", s.String())
	})
	return p, nil
}

func (p *Peer) handleConnectionState(s webrtc.PeerConnectionState) {
	st := connectionState(s)
	p.state.Store(int32(st))
	p.log.Info("peer connection state", "state", st)

	if st == session.ConnectionStateConnected {
		p.startPumps()
	}
}

// connectionState maps pion's peer connection state onto the session's.
func connectionState(s webrtc.PeerConnectionState) session.ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return session.ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return session.ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return session.ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return session.ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return session.ConnectionStateClosed
	default:
		return session.ConnectionStateNew
	}
}

func (p *Peer) CreateOffer() (signaling.Descriptor, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return signaling.Descriptor{}, err
	}
	return fromSession(offer), nil
}

func (p *Peer) CreateAnswer() (signaling.Descriptor, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.Descriptor{}, err
	}
	return fromSession(answer), nil
}

func (p *Peer) SetLocalDescription(d signaling.Descriptor) error {
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(toSession(d)); err != nil {
		return err
	}
	p.mu.Lock()
	p.gathered = gathered
	p.mu.Unlock()
	return nil
}

func (p *Peer) SetRemoteDescription(d signaling.Descriptor) error {
	return p.pc.SetRemoteDescription(toSession(d))
}

// LocalDescription waits for ICE gathering so the description carries every
// candidate; candidates are never trickled.
func (p *Peer) LocalDescription(ctx context.Context) (signaling.Descriptor, error) {
	p.mu.Lock()
	gathered := p.gathered
	p.mu.Unlock()
	if gathered == nil {
		return signaling.Descriptor{}, ErrNoLocalDesc
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return signaling.Descriptor{}, ctx.Err()
	}

	desc := p.pc.LocalDescription()
	if desc == nil {
		return signaling.Descriptor{}, ErrNoLocalDesc
	}
	return fromSession(*desc), nil
}

func (p *Peer) AddTrack(t session.LocalTrack) error {
	ft, ok := t.(*FileTrack)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedTrack, t)
	}

	sender, err := p.pc.AddTrack(ft.track)
	if err != nil {
		return err
	}
	// Read incoming RTCP so interceptors keep working.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	p.mu.Lock()
	p.locals = append(p.locals, ft)
	pumping := p.pumping
	p.mu.Unlock()
	if pumping {
		p.startPump(ft)
	}
	return nil
}

// startPumps begins writing samples for every local track, once.
func (p *Peer) startPumps() {
	p.mu.Lock()
	if p.pumping {
		p.mu.Unlock()
		return
	}
	p.pumping = true
	locals := append([]*FileTrack(nil), p.locals...)
	p.mu.Unlock()

	for _, ft := range locals {
		p.startPump(ft)
	}
}

func (p *Peer) startPump(ft *FileTrack) {
	select {
	case <-p.done:
		return
	default:
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ft.pump(p.done)
	}()
}

func (p *Peer) OnTrack(fn func(session.RemoteTrack)) {
	p.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		rt := newRemoteTrack(tr)
		p.log.Info("remote track", "id", rt.ID(), "kind", rt.Kind(), "codec", rt.MimeType())

		if rt.Kind() == session.KindVideo {
			go p.requestKeyframes(tr)
		}
		fn(rt)
		rt.read(p.log)
	})
}

// requestKeyframes sends a PLI on a timer so a recording can start cleanly.
func (p *Peer) requestKeyframes(tr *webrtc.TrackRemote) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for {
		err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(tr.SSRC())}})
		if err != nil {
			return
		}
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}
	}
}

func (p *Peer) ConnectionState() session.ConnectionState {
	return session.ConnectionState(p.state.Load())
}

// Close shuts the peer connection and waits for the sample pumps to stop.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.pc.Close()
		p.wg.Wait()
		p.state.Store(int32(session.ConnectionStateClosed))
	})
	return err
}

func fromSession(d webrtc.SessionDescription) signaling.Descriptor {
	return signaling.Descriptor{Type: d.Type.String(), SDP: d.SDP}
}

func toSession(d signaling.Descriptor) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}
