package session

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/warpcast/internal/broker"
	"github.com/BioHazard786/warpcast/internal/server"
	"github.com/BioHazard786/warpcast/internal/signaling"
	"github.com/pion/transport/v3/test"
)

// TestOfferQueuedUntilResponderJoins runs both orchestrators against a real
// broker, with the responder connecting only after the offer was sent.
func TestOfferQueuedUntilResponderJoins(t *testing.T) {
	report := test.TimeOut(20 * time.Second)
	defer report.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := broker.New(nil, nil)
	go b.Run(ctx)
	srv := httptest.NewServer(server.NewMux(b, nil))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	opts := func(log *stateLog) Options {
		return Options{
			ServerURL:          url,
			NegotiationTimeout: 5 * time.Second,
			PollInterval:       10 * time.Millisecond,
			KeepAliveInterval:  10 * time.Millisecond,
			OnStateChange:      log.record,
		}
	}

	senderEngine := newFakeEngine()
	senderLog := newStateLog()
	video := &fakeLocalTrack{id: "cam", kind: KindVideo}
	sender := NewInitiator(senderEngine, &fakeSource{tracks: []LocalTrack{video}}, opts(senderLog))
	senderDone := runAsync(ctx, sender.Run)

	// Wait until the broker holds the offer for the absent receiver.
	deadline := time.Now().Add(5 * time.Second)
	for {
		slots := b.Slots()
		if len(slots) == 2 && slots[1].Role == signaling.RoleReceiver && slots[1].Pending == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("offer never queued: %+v", slots)
		}
		time.Sleep(10 * time.Millisecond)
	}

	receiverEngine := newFakeEngine()
	receiverLog := newStateLog()
	receiver := NewResponder(receiverEngine, &fakeRenderer{}, opts(receiverLog))
	receiverDone := runAsync(ctx, receiver.Run)

	waitState(t, senderLog, StateActive, 5*time.Second)
	waitState(t, receiverLog, StateActive, 5*time.Second)

	if got := receiverEngine.remoteDescriptions(); len(got) != 1 || got[0].SDP != "v=0 offer" {
		t.Errorf("receiver applied %+v, want the sender's offer", got)
	}
	if got := senderEngine.remoteDescriptions(); len(got) != 1 || got[0].SDP != "v=0 answer" {
		t.Errorf("sender applied %+v, want the receiver's answer", got)
	}

	video.ended.Store(true)
	if err := waitResult(t, senderDone); err != nil {
		t.Errorf("sender Run() = %v", err)
	}

	receiver.Close()
	if err := waitResult(t, receiverDone); err != nil {
		t.Errorf("receiver Run() = %v", err)
	}
}

func TestResponderTrackEndedAfterPeerClosed(t *testing.T) {
	report := test.TimeOut(10 * time.Second)
	defer report.Stop()

	engine := newFakeEngine()
	ch := newFakeChannel(encode(t, signaling.DescriptorOffer, "v=0"))
	log := newStateLog()
	renderer := &fakeRenderer{}

	resp := NewResponder(engine, renderer, testOptions(ch, log))
	errc := runAsync(context.Background(), resp.Run)
	waitState(t, log, StateActive, 2*time.Second)

	track := newFakeRemoteTrack("t", KindVideo)
	engine.fireTrack(track)

	engine.setState(ConnectionStateClosed)
	if err := waitResult(t, errc); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	close(track.ended)
	time.Sleep(50 * time.Millisecond)

	if engine.closes.Load() != 1 || ch.closes.Load() != 1 || renderer.stops.Load() != 1 {
		t.Errorf("teardown ran more than once: engine=%d channel=%d renderer=%d",
			engine.closes.Load(), ch.closes.Load(), renderer.stops.Load())
	}
}
