package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ProviderCalls       *prometheus.CounterVec
	SnapshotFetches     *prometheus.CounterVec
	Verifications       *prometheus.CounterVec
	VerificationSeconds prometheus.Histogram
}

// New registers the flightbox collectors on reg. A nil reg uses a private registry,
// which keeps tests free of duplicate-registration panics.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_provider_calls_total",
			Help:      "Schedule provider calls by source and outcome",
		}, []string{"source", "outcome"}),
		SnapshotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_snapshot_fetches_total",
			Help:      "Upstream fetches of the all-flights live snapshot",
		}, []string{"outcome"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_verifications_total",
			Help:      "Flight verification results by status",
		}, []string{"status"}),
		VerificationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flight_verification_seconds",
			Help:      "Latency of a single flight verification",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.ProviderCalls, m.SnapshotFetches, m.Verifications, m.VerificationSeconds)
	return m
}

// Discard returns metrics bound to a throwaway registry.
func Discard() *Metrics {
	return New("flightbox", nil)
}
