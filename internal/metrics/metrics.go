// Package metrics exposes Prometheus metrics for CBR client requests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the client request metrics. It satisfies cbr.MetricsRecorder.
//
// Metrics:
//   - mycbr_client_requests_total{operation,method,code} - HTTP exchanges with the CBR server
//   - mycbr_client_request_duration_seconds{operation} - latency of those exchanges
//   - mycbr_client_empty_results_total{operation} - successful calls that returned no rows
//
// code is "error" when the request failed before a status was received.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	EmptyResults    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mycbr_client_requests_total",
				Help: "Total number of HTTP requests sent to the CBR server",
			},
			[]string{"operation", "method", "code"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mycbr_client_request_duration_seconds",
				Help:    "Duration of HTTP requests to the CBR server in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"operation"},
		),
		EmptyResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mycbr_client_empty_results_total",
				Help: "Total number of successful calls that returned an empty table",
			},
			[]string{"operation"},
		),
	}
}

// ObserveRequest records one HTTP exchange. status 0 means the transport failed.
func (c *Collector) ObserveRequest(operation, method string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	c.RequestsTotal.WithLabelValues(operation, method, code).Inc()
	c.RequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveEmpty records a call that returned no rows.
func (c *Collector) ObserveEmpty(operation string) {
	c.EmptyResults.WithLabelValues(operation).Inc()
}
