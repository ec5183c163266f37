package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BioHazard786/warpcast/internal/broker"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Senders and receivers are CLI processes, not browsers.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewMux wires the broker's HTTP surface: /ws, /health and, when gatherer
// is non-nil, /metrics.
func NewMux(b *broker.Broker, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ServeWs(b))
	mux.HandleFunc("/health", HealthHandler(b))
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the broker as a dependency.
func ServeWs(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		b.Accept(conn)
	}
}

type healthResponse struct {
	Status string              `json:"status"`
	Slots  []broker.SlotStatus `json:"slots"`
}

// HealthHandler reports the broker's slot state.
func HealthHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots := b.Slots()

		resp := healthResponse{Status: "ok", Slots: slots}
		code := http.StatusOK
		if slots == nil {
			resp.Status = "stopped"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	}
}
