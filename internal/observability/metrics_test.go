package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets", "POST", 201, 5*time.Millisecond)
	m.RecordRequest("/tickets", "POST", 201, 3*time.Millisecond)
	m.RecordError("/tickets/:id/confirm", "POST", "INVALID_DATE")
	m.RecordTransition("VALIDATED", "CONFIRMED")
	m.RecordEnrichmentFailure()

	snap := m.Snapshot()
	if snap.Requests["/tickets|POST|201"] != 2 {
		t.Fatalf("requests = %v", snap.Requests)
	}
	if snap.Errors["/tickets/:id/confirm|POST|INVALID_DATE"] != 1 {
		t.Fatalf("errors = %v", snap.Errors)
	}
	if snap.Transitions["VALIDATED->CONFIRMED"] != 1 || snap.EnrichmentFailures != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	snap.Requests["/tickets|POST|201"] = 99
	if m.Snapshot().Requests["/tickets|POST|201"] != 2 {
		t.Fatal("snapshot shares memory with counters")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordTransition("a", "b")
	if len(m.Snapshot().Requests) != 0 {
		t.Fatal("nil metrics should report nothing")
	}
}
