package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsolidationMetrics records the outcome of consolidation sweeps.
type ConsolidationMetrics struct {
	duration       *prometheus.HistogramVec
	success        *prometheus.CounterVec
	failure        *prometheus.CounterVec
	ordersConsumed prometheus.Counter
}

// NewConsolidationMetrics registers the consolidation metrics on the provided registerer.
func NewConsolidationMetrics(reg prometheus.Registerer) *ConsolidationMetrics {
	if reg == nil {
		return &ConsolidationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consolidation_run_duration_seconds",
		Help:    "Duration of consolidation sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consolidation_run_success",
		Help: "Successful consolidation sweeps.",
	}, []string{"trigger"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consolidation_run_failure",
		Help: "Failed consolidation sweeps.",
	}, []string{"trigger"})
	ordersConsumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consolidation_orders_consumed_total",
		Help: "Validated orders consumed by consolidation sweeps.",
	})
	reg.MustRegister(duration, success, failure, ordersConsumed)
	return &ConsolidationMetrics{
		duration:       duration,
		success:        success,
		failure:        failure,
		ordersConsumed: ordersConsumed,
	}
}

// ObserveDuration records the duration of a sweep with its outcome label.
func (c *ConsolidationMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the given trigger.
func (c *ConsolidationMetrics) IncSuccess(trigger string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncFailure increments the failure counter for the given trigger.
func (c *ConsolidationMetrics) IncFailure(trigger string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// AddOrdersConsumed adds to the consumed-order counter.
func (c *ConsolidationMetrics) AddOrdersConsumed(n int) {
	if c == nil || c.ordersConsumed == nil || n <= 0 {
		return
	}
	c.ordersConsumed.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
