package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBrokerCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBroker(reg)

	m.Bound("sender")
	m.Bound("sender")
	m.Queued("receiver")
	m.Rejected()
	m.SetSlot("receiver", false, 3)

	if got := testutil.ToFloat64(m.bindings.WithLabelValues("sender")); got != 2 {
		t.Errorf("bindings{sender} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.queued.WithLabelValues("receiver")); got != 1 {
		t.Errorf("queued{receiver} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.pending.WithLabelValues("receiver")); got != 3 {
		t.Errorf("pending{receiver} = %v, want 3", got)
	}
}

func TestNilBrokerIsNoop(t *testing.T) {
	var m *Broker
	m.Bound("sender")
	m.Superseded("sender")
	m.Rejected()
	m.Relayed("receiver")
	m.Queued("receiver")
	m.SetSlot("sender", true, 0)
}
