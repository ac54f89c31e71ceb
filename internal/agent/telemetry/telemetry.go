package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes recorded by turns_total.
const (
	OutcomeCompleted = "completed"
	OutcomeFallback  = "fallback"
	OutcomeAborted   = "aborted"
)

// Telemetry owns the pipeline's Prometheus collectors
type Telemetry struct {
	logger *log.Logger

	stageDuration  *prometheus.HistogramVec
	turns          *prometheus.CounterVec
	searchCalls    *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	resources      prometheus.Histogram
	sessions       prometheus.Gauge
}

// NewTelemetry creates the collectors and registers them on reg. A nil reg
// keeps the collectors unregistered, which tests use.
func NewTelemetry(reg prometheus.Registerer) (*Telemetry, error) {
	t := &Telemetry{
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civicnav",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of pipeline stages.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicnav",
			Name:      "turns_total",
			Help:      "Finished turns by outcome.",
		}, []string{"outcome"}),
		searchCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicnav",
			Name:      "search_calls_total",
			Help:      "Search calls issued by outcome.",
		}, []string{"outcome"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicnav",
			Name:      "upstream_errors_total",
			Help:      "Upstream client failures by client and error kind.",
		}, []string{"client", "kind"}),
		resources: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "civicnav",
			Name:      "turn_new_resources",
			Help:      "Resources newly added to a session per turn.",
			Buckets:   prometheus.LinearBuckets(0, 1, 8),
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civicnav",
			Name:      "sessions_active",
			Help:      "Sessions currently retained by the session store.",
		}),
	}
	if reg == nil {
		return t, nil
	}
	for _, c := range []prometheus.Collector{t.stageDuration, t.turns, t.searchCalls, t.upstreamErrors, t.resources, t.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ObserveStage records one executed stage.
func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordTurn counts a finished turn and how many resources it added.
func (t *Telemetry) RecordTurn(outcome string, newResources int) {
	if t == nil {
		return
	}
	t.turns.WithLabelValues(outcome).Inc()
	if outcome != OutcomeAborted {
		t.resources.Observe(float64(newResources))
	}
}

// RecordSearchCall counts one issued search call. kind is "" on success.
func (t *Telemetry) RecordSearchCall(kind string) {
	if t == nil {
		return
	}
	outcome := "ok"
	if kind != "" {
		outcome = kind
	}
	t.searchCalls.WithLabelValues(outcome).Inc()
}

// RecordUpstreamError counts a failed reasoning or search call.
func (t *Telemetry) RecordUpstreamError(client, kind string) {
	if t == nil {
		return
	}
	t.upstreamErrors.WithLabelValues(client, kind).Inc()
	t.logger.Printf("upstream failure client=%s kind=%s", client, kind)
}

// SetSessions updates the retained session gauge.
func (t *Telemetry) SetSessions(n int) {
	if t == nil {
		return
	}
	t.sessions.Set(float64(n))
}
