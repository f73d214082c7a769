package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks credential resolution outcomes by result kind and source.
	CredentialResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_credential_resolutions_total",
			Help: "Credential resolution attempts by outcome (success kind or failure kind).",
		},
		[]string{"outcome"},
	)

	// Measures duration of BigQuery queries by query name.
	BQQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_bq_query_duration_seconds",
			Help:    "Duration of BigQuery queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms → ~40s
		},
		[]string{"query"},
	)

	// Tracks webhook result postings by outcome.
	WebhookPostings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_webhook_postings_total",
			Help: "Optimizer result postings received over HTTP, by outcome.",
		},
		[]string{"outcome"}, // ok | invalid_signature | invalid_payload | store_error
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks summary cache hits and misses.
	SummaryCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_summary_cache_access_total",
			Help: "Number of cache hits/misses for the metrics summary.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_errors_total",
			Help: "Count of service-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the number of live websocket subscribers.
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_live_subscribers",
			Help: "Current number of websocket feed subscribers.",
		},
	)
)

// ObserveDuration records the time taken since start on the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncResolution(outcome string) {
	CredentialResolutions.WithLabelValues(outcome).Inc()
}

func IncWebhook(outcome string) {
	WebhookPostings.WithLabelValues(outcome).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncSummaryCache(result string) {
	SummaryCacheAccess.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}
