// Package metrics exposes Prometheus instrumentation for the license
// server: verification outcomes by reason and request latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registered collectors.
type Metrics struct {
	verifications *prometheus.CounterVec
	duration      prometheus.Histogram
}

// New registers the license metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rfx",
			Subsystem: "license",
			Name:      "verifications_total",
			Help:      "License verification attempts by outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rfx",
			Subsystem: "license",
			Name:      "verification_duration_seconds",
			Help:      "License verification latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.verifications, m.duration)
	return m
}

// RecordVerification counts one verification outcome. result is "valid" or
// one of the wire reason codes.
func (m *Metrics) RecordVerification(result string, elapsed time.Duration) {
	m.verifications.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}
