package session

import (
	"context"
	"fmt"

	"github.com/BioHazard786/warpcast/internal/signaling"
)

// Responder answers the sender's offer and hands received tracks to a
// Renderer.
type Responder struct {
	*session
	renderer Renderer
}

func NewResponder(engine Engine, renderer Renderer, opts Options) *Responder {
	return &Responder{
		session:  newSession(signaling.RoleReceiver, engine, opts),
		renderer: renderer,
	}
}

// Run negotiates, then blocks until the session closes. It returns nil for a
// session that ended normally and a *Error otherwise.
func (r *Responder) Run(ctx context.Context) error {
	ctx = r.bind(ctx)
	r.onTeardown(r.renderer.Stop)
	r.engine.OnTrack(r.handleTrack)

	if err := r.negotiate(ctx); err != nil {
		r.teardown("negotiation failed")
		return r.result()
	}
	if !r.activate() {
		return r.finish()
	}
	r.log.Info("session active")
	go r.watchChannel(ctx)

	return r.keepAlive(ctx)
}

func (r *Responder) negotiate(ctx context.Context) error {
	ch, err := r.connect(ctx)
	if err != nil {
		return err
	}

	text, err := r.await(ctx, ch, PhaseOfferWait)
	if err != nil {
		return err
	}
	if reason, ok := signaling.DecodeError(text); ok {
		return r.fail(PhaseOfferWait, ErrProtocol, reason)
	}
	offer, err := signaling.DecodeDescriptor(text, signaling.DescriptorOffer)
	if err != nil {
		return r.fail(PhaseOfferWait, fmt.Errorf("%w: %w", ErrProtocol, err))
	}
	r.log.Info("received offer")

	if err := r.engine.SetRemoteDescription(offer); err != nil {
		return r.fail(PhaseEngineApply, engineErr(err))
	}
	answer, err := r.engine.CreateAnswer()
	if err != nil {
		return r.fail(PhaseEngineApply, engineErr(err))
	}
	if err := r.engine.SetLocalDescription(answer); err != nil {
		return r.fail(PhaseEngineApply, engineErr(err))
	}
	local, err := r.engine.LocalDescription(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return r.fail(PhaseAnswerSend, ErrCancelled)
		}
		return r.fail(PhaseAnswerSend, engineErr(err))
	}
	return r.send(ch, PhaseAnswerSend, local)
}

// handleTrack is the engine's track callback.
func (r *Responder) handleTrack(t RemoteTrack) {
	select {
	case <-r.closing:
		return
	default:
	}

	r.log.Info("receiving track", "id", t.ID(), "kind", t.Kind())
	if err := r.renderer.Attach(t); err != nil {
		r.log.Warn("renderer rejected track", "id", t.ID(), "error", err)
	}
	go r.watchRemoteTrack(t)
}

// watchRemoteTrack closes the session when the track's stream ends.
func (r *Responder) watchRemoteTrack(t RemoteTrack) {
	select {
	case <-r.closing:
	case <-t.Ended():
		r.log.Info("remote track ended", "id", t.ID(), "kind", t.Kind())
		r.teardown("remote track ended")
	}
}
