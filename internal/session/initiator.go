package session

import (
	"context"
	"fmt"
	"time"

	"github.com/BioHazard786/warpcast/internal/signaling"
)

// Initiator offers local media to whichever peer takes the receiver slot.
type Initiator struct {
	*session
	source Source
}

func NewInitiator(engine Engine, source Source, opts Options) *Initiator {
	return &Initiator{
		session: newSession(signaling.RoleSender, engine, opts),
		source:  source,
	}
}

// Run negotiates, then blocks until the session closes. It returns nil for a
// session that ended normally and a *Error otherwise.
func (i *Initiator) Run(ctx context.Context) error {
	ctx = i.bind(ctx)
	i.onTeardown(i.source.Close)

	video, err := i.negotiate(ctx)
	if err != nil {
		i.teardown("negotiation failed")
		return i.result()
	}
	if !i.activate() {
		return i.finish()
	}
	i.log.Info("session active")
	go i.watchChannel(ctx)

	if video != nil {
		go i.watchTrack(video)
	}
	return i.keepAlive(ctx)
}

// negotiate runs the offer/answer exchange and returns the offered video
// track, if any.
func (i *Initiator) negotiate(ctx context.Context) (LocalTrack, error) {
	tracks := i.source.Tracks()
	if len(tracks) == 0 {
		return nil, i.fail(PhaseCapture, ErrNoTracks)
	}

	var video LocalTrack
	for _, t := range tracks {
		if err := i.engine.AddTrack(t); err != nil {
			return nil, i.fail(PhaseCapture, engineErr(err), t.ID())
		}
		if t.Kind() == KindVideo && video == nil {
			video = t
		}
		i.log.Debug("added track", "id", t.ID(), "kind", t.Kind())
	}

	offer, err := i.engine.CreateOffer()
	if err != nil {
		return nil, i.fail(PhaseOfferSend, engineErr(err))
	}
	if err := i.engine.SetLocalDescription(offer); err != nil {
		return nil, i.fail(PhaseOfferSend, engineErr(err))
	}
	local, err := i.engine.LocalDescription(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, i.fail(PhaseOfferSend, ErrCancelled)
		}
		return nil, i.fail(PhaseOfferSend, engineErr(err))
	}

	ch, err := i.connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := i.send(ch, PhaseOfferSend, local); err != nil {
		return nil, err
	}

	text, err := i.await(ctx, ch, PhaseAnswerWait)
	if err != nil {
		return nil, err
	}
	if reason, ok := signaling.DecodeError(text); ok {
		return nil, i.fail(PhaseAnswerWait, ErrProtocol, reason)
	}
	answer, err := signaling.DecodeDescriptor(text, signaling.DescriptorAnswer)
	if err != nil {
		return nil, i.fail(PhaseAnswerWait, fmt.Errorf("%w: %w", ErrProtocol, err))
	}
	i.log.Info("received answer")

	if err := i.engine.SetRemoteDescription(answer); err != nil {
		return nil, i.fail(PhaseEngineApply, engineErr(err))
	}
	return video, nil
}

// watchTrack polls the offered video track and closes the session once it
// has ended.
func (i *Initiator) watchTrack(t LocalTrack) {
	ticker := time.NewTicker(i.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.closing:
			return
		case <-ticker.C:
			if t.ReadyState() == ReadyStateEnded {
				i.log.Info("video track ended", "id", t.ID())
				i.teardown("video track ended")
				return
			}
		}
	}
}
