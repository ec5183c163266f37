package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "warpcast"

// Broker holds the broker's Prometheus collectors. A nil *Broker is valid
// and records nothing.
type Broker struct {
	bindings   *prometheus.CounterVec
	superseded *prometheus.CounterVec
	rejected   prometheus.Counter
	relayed    *prometheus.CounterVec
	queued     *prometheus.CounterVec
	pending    *prometheus.GaugeVec
	bound      *prometheus.GaugeVec
}

// NewBroker creates the broker collectors and registers them with reg.
func NewBroker(reg prometheus.Registerer) *Broker {
	m := &Broker{
		bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "bindings_total",
			Help:      "Connections bound to a role slot.",
		}, []string{"role"}),
		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "superseded_total",
			Help:      "Bound connections closed because a newer one claimed the same role.",
		}, []string{"role"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "rejected_total",
			Help:      "Connections rejected for an invalid role declaration.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "relayed_total",
			Help:      "Messages forwarded straight to a bound role.",
		}, []string{"target"}),
		queued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "queued_total",
			Help:      "Messages queued for a role with no bound connection.",
		}, []string{"target"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "pending",
			Help:      "Messages currently waiting in a role's queue.",
		}, []string{"role"}),
		bound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "bound",
			Help:      "1 when a role slot has a bound connection.",
		}, []string{"role"}),
	}

	reg.MustRegister(m.bindings, m.superseded, m.rejected, m.relayed, m.queued, m.pending, m.bound)
	return m
}

func (m *Broker) Bound(role string) {
	if m == nil {
		return
	}
	m.bindings.WithLabelValues(role).Inc()
}

func (m *Broker) Superseded(role string) {
	if m == nil {
		return
	}
	m.superseded.WithLabelValues(role).Inc()
}

func (m *Broker) Rejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *Broker) Relayed(target string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(target).Inc()
}

func (m *Broker) Queued(target string) {
	if m == nil {
		return
	}
	m.queued.WithLabelValues(target).Inc()
}

// SetSlot publishes a slot's current binding and queue depth.
func (m *Broker) SetSlot(role string, bound bool, pending int) {
	if m == nil {
		return
	}
	v := 0.0
	if bound {
		v = 1
	}
	m.bound.WithLabelValues(role).Set(v)
	m.pending.WithLabelValues(role).Set(float64(pending))
}
