package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation latency and outcome counts as
// Prometheus collectors.
type PrometheusMetricsRecorder struct {
	latency *prometheus.HistogramVec
	total   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the recorder's collectors on reg.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "metacore",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Latency of metacore service operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"operation"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metacore",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Count of metacore service operations by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{r.latency, r.total} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := string(AuditStatusError)
	if success {
		status = string(AuditStatusSuccess)
	}
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
	r.total.WithLabelValues(operation, status).Inc()
}
