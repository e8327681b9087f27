package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsUsableBeforeRegistration(t *testing.T) {
	PairingClaimsTotal.WithLabelValues("claimed").Inc()
	if got := testutil.ToFloat64(PairingClaimsTotal.WithLabelValues("claimed")); got < 1 {
		t.Fatalf("counter not incremented: %v", got)
	}
}

func TestWrappedRegistryAddsServiceLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": "guardian"}, reg)
	wrapped.MustRegister(InboxMessagesTotal)
	InboxMessagesTotal.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 1 {
		t.Fatalf("expected one family, got %d", len(families))
	}
	labels := families[0].GetMetric()[0].GetLabel()
	if len(labels) != 1 || labels[0].GetName() != "service" || labels[0].GetValue() != "guardian" {
		t.Fatalf("missing service label: %v", labels)
	}
}
