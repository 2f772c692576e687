// Package metrics records per-state idle entry statistics.
package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder receives one observation per completed idle-state entry.
type Recorder interface {
	ObserveEntry(state string, residency time.Duration)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

// ObserveEntry implements Recorder.
func (NopRecorder) ObserveEntry(string, time.Duration) {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	entries   *prom.CounterVec
	residency *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers the idle-state metrics on
// reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		entries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cpuidle",
			Name:      "state_entries_total",
			Help:      "Completed idle-state entries by state",
		}, []string{"state"}),
		residency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "cpuidle",
			Name:      "state_residency_seconds",
			Help:      "Observed residency per idle-state entry",
			Buckets:   prom.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"state"}),
	}
	reg.MustRegister(pr.entries, pr.residency)
	return pr
}

// ObserveEntry implements Recorder.
func (pr *PrometheusRecorder) ObserveEntry(state string, residency time.Duration) {
	pr.entries.WithLabelValues(state).Inc()
	pr.residency.WithLabelValues(state).Observe(residency.Seconds())
}

var (
	_ Recorder = NopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)
