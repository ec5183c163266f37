package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/warpcast/internal/broker"
	"github.com/BioHazard786/warpcast/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T) (*httptest.Server, *broker.Broker) {
	t.Helper()

	reg := prometheus.NewRegistry()
	b := broker.New(metrics.NewBroker(reg), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)

	srv := httptest.NewServer(NewMux(b, reg))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-b.Done()
	})
	return srv, b
}

func TestHealthReportsSlots(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Slots) != 2 {
		t.Fatalf("slots = %+v, want two", body.Slots)
	}
	for _, s := range body.Slots {
		if s.Bound || s.Pending != 0 {
			t.Errorf("fresh broker slot %+v should be empty", s)
		}
	}
}

func TestMetricsAfterRelay(t *testing.T) {
	srv, b := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	ws.WriteMessage(websocket.TextMessage, []byte("sender"))
	ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"offer","sdp":"v=0"}`))

	deadline := time.Now().Add(2 * time.Second)
	for {
		slots := b.Slots()
		if len(slots) == 2 && slots[1].Pending == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("offer never queued: %+v", slots)
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`warpcast_broker_queued_total{target="receiver"} 1`,
		`warpcast_broker_bound{role="sender"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
