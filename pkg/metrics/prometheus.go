package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeAborted = "aborted"
)

// PrometheusMetrics exports counters for probe runs on a private registry.
type PrometheusMetrics struct {
	requestsTotal  *prometheus.CounterVec
	batchesTotal   *prometheus.CounterVec
	batchElapsed   *prometheus.GaugeVec
	batchCompleted *prometheus.GaugeVec
	batchRunning   *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "postbench"
	}

	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of POST requests issued, by outcome and status code",
		},
		[]string{"outcome", "code"},
	)

	m.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches run, by dispatch mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	m.batchElapsed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_elapsed_seconds",
			Help:      "Elapsed time of the last batch",
		},
		[]string{"mode"},
	)

	m.batchCompleted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_completed_requests",
			Help:      "Requests completed by the last batch",
		},
		[]string{"mode"},
	)

	m.batchRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_running",
			Help:      "1 while a batch measurement is active",
		},
		[]string{"mode"},
	)

	m.registry.MustRegister(m.requestsTotal)
	m.registry.MustRegister(m.batchesTotal)
	m.registry.MustRegister(m.batchElapsed)
	m.registry.MustRegister(m.batchCompleted)
	m.registry.MustRegister(m.batchRunning)

	return m
}

// RecordRequest records one request. statusCode is 0 when it is unknown:
// successful posts are labeled "2xx", failures without a response "none".
func (m *PrometheusMetrics) RecordRequest(success bool, statusCode int) {
	outcome, code := OutcomeSuccess, "2xx"
	if !success {
		outcome, code = OutcomeError, "none"
	}
	if statusCode != 0 {
		code = strconv.Itoa(statusCode)
	}
	m.requestsTotal.WithLabelValues(outcome, code).Inc()
}

// RecordBatchStart marks a batch measurement as active
func (m *PrometheusMetrics) RecordBatchStart(mode string) {
	m.batchRunning.WithLabelValues(mode).Set(1)
}

// RecordBatch records the end of a batch
func (m *PrometheusMetrics) RecordBatch(mode string, aborted bool, completed int, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if aborted {
		outcome = OutcomeAborted
	}
	m.batchRunning.WithLabelValues(mode).Set(0)
	m.batchesTotal.WithLabelValues(mode, outcome).Inc()
	m.batchElapsed.WithLabelValues(mode).Set(elapsed.Seconds())
	m.batchCompleted.WithLabelValues(mode).Set(float64(completed))
}

// GetHTTPHandler returns an HTTP handler for metrics endpoint
func (m *PrometheusMetrics) GetHTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
