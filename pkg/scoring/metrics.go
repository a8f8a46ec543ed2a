package scoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	callDuration        *prometheus.HistogramVec
	callFailures        *prometheus.CounterVec
	breakerStateChanges *prometheus.CounterVec
)

func registerMetrics() {
	registerOnce.Do(func() {
		callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intervexa",
			Subsystem: "scoring",
			Name:      "call_duration_seconds",
			Help:      "Duration of scoring backend calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"backend"})

		callFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intervexa",
			Subsystem: "scoring",
			Name:      "call_failures_total",
			Help:      "Scoring backend call failures by reason.",
		}, []string{"backend", "reason"})

		breakerStateChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intervexa",
			Subsystem: "scoring",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by target state.",
		}, []string{"backend", "state"})

		prometheus.MustRegister(callDuration, callFailures, breakerStateChanges)
	})
}

func callDurationVec() *prometheus.HistogramVec {
	registerMetrics()
	return callDuration
}

func callFailuresVec() *prometheus.CounterVec {
	registerMetrics()
	return callFailures
}

func breakerTransitions() *prometheus.CounterVec {
	registerMetrics()
	return breakerStateChanges
}
