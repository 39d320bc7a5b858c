package ledger

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the mutation layer's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	broadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mutation_layer",
			Subsystem: "broadcast",
			Name:      "submissions_total",
			Help:      "Total broadcast submissions by outcome status.",
		},
		[]string{"status"},
	)

	broadcastDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mutation_layer",
			Subsystem: "broadcast",
			Name:      "submission_duration_seconds",
			Help:      "Duration of broadcast submissions.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"status"},
	)

	// ProviderAttempts counts signing attempts by provider and result status.
	ProviderAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mutation_layer",
			Subsystem: "auth",
			Name:      "provider_attempts_total",
			Help:      "Signing attempts by provider kind and result status.",
		},
		[]string{"provider", "status"},
	)

	// CoherenceFailures counts cache updates that failed after a confirmed
	// broadcast. Non-zero values indicate cache drift.
	CoherenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mutation_layer",
			Subsystem: "cache",
			Name:      "coherence_failures_total",
			Help:      "Cache coherence failures after a successful broadcast.",
		},
	)
)

func init() {
	Registry.MustRegister(
		broadcastsTotal,
		broadcastDuration,
		ProviderAttempts,
		CoherenceFailures,
	)
}

// MetricsHandler returns an HTTP handler exposing the registered collectors.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
