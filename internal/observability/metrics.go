package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	evaluationsTotal     *prometheus.CounterVec
	evaluationQueueDepth prometheus.Gauge
	evaluationsInFlight  prometheus.Gauge
	webhookRejectedTotal *prometheus.CounterVec
	statusStreamClients  prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the
// evaluation pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Completed answer evaluations by outcome.",
		}, []string{"outcome"})

		evaluationQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evaluation_queue_depth",
			Help: "Number of evaluations waiting in the worker queue.",
		})

		evaluationsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evaluations_in_flight",
			Help: "Number of evaluations currently being processed.",
		})

		webhookRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_rejected_total",
			Help: "Inbound scoring webhooks rejected before any state change.",
		}, []string{"reason"})

		statusStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "status_stream_clients",
			Help: "Active SSE subscribers on answer status streams.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			evaluationsTotal, evaluationQueueDepth, evaluationsInFlight,
			webhookRejectedTotal, statusStreamClients,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluationsTotal exposes the evaluation outcome counter.
func EvaluationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationQueueDepth exposes the worker queue depth gauge.
func EvaluationQueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return evaluationQueueDepth
}

// EvaluationsInFlight exposes the in-flight evaluation gauge.
func EvaluationsInFlight() prometheus.Gauge {
	RegisterMetrics()
	return evaluationsInFlight
}

// WebhookRejected exposes the rejected webhook counter.
func WebhookRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return webhookRejectedTotal
}

// StatusStreamClients exposes the SSE subscriber gauge.
func StatusStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return statusStreamClients
}
