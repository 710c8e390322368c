package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout stages used as label values.
const (
	StageStart        = "start"
	StageFinalize     = "finalize"
	StageFinalizeFree = "finalize_free"
)

// CheckoutMetrics records the order lifecycle. A nil *CheckoutMetrics is a
// valid no-op recorder.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	replays  prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_stage_duration_seconds",
		Help:    "Duration of checkout stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_stage_success_total",
		Help: "Checkout stages that completed.",
	}, []string{"stage"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_stage_failure_total",
		Help: "Checkout stages that failed, by error code.",
	}, []string{"stage", "code"})
	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_finalize_replays_total",
		Help: "Finalize calls answered from an already complete order.",
	})
	reg.MustRegister(duration, success, failure, replays)
	return &CheckoutMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		replays:  replays,
	}
}

// Observe records one stage run. An empty code means success.
func (c *CheckoutMetrics) Observe(stage string, took time.Duration, code string) {
	if c == nil || c.duration == nil {
		return
	}
	stage = normalizeLabel(stage)
	c.duration.WithLabelValues(stage).Observe(took.Seconds())
	if code == "" {
		c.success.WithLabelValues(stage).Inc()
		return
	}
	c.failure.WithLabelValues(stage, code).Inc()
}

func (c *CheckoutMetrics) IncReplay() {
	if c == nil || c.replays == nil {
		return
	}
	c.replays.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
