// Package observability exposes Prometheus metrics, OpenTelemetry tracing,
// and the HTTP surface that serves them.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Translation metrics
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_queries_total",
			Help: "Total number of translated queries by complexity label",
		},
		[]string{"complexity", "status"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queryforge_query_duration_seconds",
			Help:    "End-to-end translation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"complexity"},
	)

	subQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_sub_queries_total",
			Help: "Total number of decomposed sub-queries by outcome",
		},
		[]string{"status"},
	)

	// Model call metrics
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_model_calls_total",
			Help: "Total number of model completions by provider",
		},
		[]string{"provider", "status"},
	)

	modelCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queryforge_model_call_duration_seconds",
			Help:    "Model completion duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// History metrics
	historyWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queryforge_history_write_failures_total",
			Help: "Total number of dropped or failed history writes",
		},
	)

	// Session metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "queryforge_active_sessions",
			Help: "Number of sessions held in memory",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers all Prometheus collectors. Safe to call more than
// once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			queriesTotal,
			queryDuration,
			subQueriesTotal,
			modelCallsTotal,
			modelCallDuration,
			historyWriteFailures,
			activeSessions,
		)
	})
}

// MetricsHandler returns an HTTP handler for the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordQuery records one completed translation.
func RecordQuery(complexity, status string, duration time.Duration) {
	queriesTotal.WithLabelValues(complexity, status).Inc()
	queryDuration.WithLabelValues(complexity).Observe(duration.Seconds())
}

// RecordSubQuery records one sub-query outcome.
func RecordSubQuery(status string) {
	subQueriesTotal.WithLabelValues(status).Inc()
}

// RecordModelCall records one model completion.
func RecordModelCall(provider, status string, duration time.Duration) {
	modelCallsTotal.WithLabelValues(provider, status).Inc()
	modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordHistoryWriteFailure counts a dropped or failed history write.
func RecordHistoryWriteFailure() {
	historyWriteFailures.Inc()
}

// SetActiveSessions sets the in-memory session gauge.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}
