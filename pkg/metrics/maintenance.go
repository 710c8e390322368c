package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaintenanceMetrics tracks each housekeeping task run by cmd/maintenance.
type MaintenanceMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	removed  *prometheus.CounterVec
}

func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return &MaintenanceMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_task_runs_total",
		Help: "Maintenance task runs by outcome.",
	}, []string{"task", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_task_duration_seconds",
		Help:    "Wall time of one maintenance task run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	removed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_rows_removed_total",
		Help: "Rows deleted by maintenance tasks.",
	}, []string{"task"})
	reg.MustRegister(runs, duration, removed)
	return &MaintenanceMetrics{runs: runs, duration: duration, removed: removed}
}

// Observe records one run. A nil err counts as success.
func (m *MaintenanceMetrics) Observe(task string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	task = normalizeLabel(task)
	m.duration.WithLabelValues(task).Observe(took.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runs.WithLabelValues(task, outcome).Inc()
}

func (m *MaintenanceMetrics) AddRemoved(task string, n int64) {
	if m == nil || m.removed == nil || n <= 0 {
		return
	}
	m.removed.WithLabelValues(normalizeLabel(task)).Add(float64(n))
}
