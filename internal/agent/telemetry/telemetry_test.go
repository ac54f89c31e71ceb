package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTelemetryCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := NewTelemetry(reg)
	if err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}
	tel.RecordTurn(OutcomeCompleted, 2)
	tel.RecordTurn(OutcomeCompleted, 0)
	tel.RecordTurn(OutcomeAborted, 0)
	tel.RecordSearchCall("")
	tel.RecordSearchCall("rate_limited")
	tel.RecordUpstreamError("search", "rate_limited")
	tel.ObserveStage("decide_strategy", 120*time.Millisecond)
	tel.SetSessions(3)

	if got := testutil.ToFloat64(tel.turns.WithLabelValues(OutcomeCompleted)); got != 2 {
		t.Fatalf("completed turns = %v", got)
	}
	if got := testutil.ToFloat64(tel.turns.WithLabelValues(OutcomeAborted)); got != 1 {
		t.Fatalf("aborted turns = %v", got)
	}
	if got := testutil.ToFloat64(tel.searchCalls.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok search calls = %v", got)
	}
	if got := testutil.ToFloat64(tel.upstreamErrors.WithLabelValues("search", "rate_limited")); got != 1 {
		t.Fatalf("upstream errors = %v", got)
	}
	if got := testutil.ToFloat64(tel.sessions); got != 3 {
		t.Fatalf("sessions gauge = %v", got)
	}
	if n := testutil.CollectAndCount(tel.stageDuration); n != 1 {
		t.Fatalf("expected one stage series, got %d", n)
	}
}

func TestTelemetryDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewTelemetry(reg); err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}
	if _, err := NewTelemetry(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilTelemetryIsNoop(t *testing.T) {
	var tel *Telemetry
	tel.RecordTurn(OutcomeCompleted, 1)
	tel.ObserveStage("x", time.Second)
	tel.SetSessions(1)
}
