package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAreIndependentPerRegistry(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.LoggedIn(OutcomeSuccess)
	a.LoggedIn(OutcomeSuccess)
	a.GuardRejected("revoked")

	if got := testutil.ToFloat64(a.Logins.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 logins, got %v", got)
	}
	if got := testutil.ToFloat64(b.Logins.WithLabelValues(OutcomeSuccess)); got != 0 {
		t.Fatalf("registries leaked counters: %v", got)
	}
	if got := testutil.ToFloat64(a.GuardRejections.WithLabelValues("revoked")); got != 1 {
		t.Fatalf("expected 1 guard rejection, got %v", got)
	}
}
