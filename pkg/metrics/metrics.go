// Package metrics exposes this service's Prometheus instrumentation: sweep
// counts and durations per worker kind, and verification outcome counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts completed sweeps, labeled by worker kind
	// ("public_directory", "did_registry", "external_source") and outcome
	// ("success", "failure").
	SweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustlist",
		Name:      "sweeps_total",
		Help:      "Completed sweeps by worker kind and outcome.",
	}, []string{"worker", "outcome"})

	// SweepDurationSeconds observes sweep wall-clock time per worker kind.
	SweepDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trustlist",
		Name:      "sweep_duration_seconds",
		Help:      "Sweep duration in seconds by worker kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"worker"})

	// VerificationsTotal counts HC1 verification attempts, labeled by
	// outcome ("valid", "invalid", "bad_input").
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trustlist",
		Name:      "verifications_total",
		Help:      "HC1 verification attempts by outcome.",
	}, []string{"outcome"})
)
