package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the job manager's Prometheus collectors.
type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobsRunning prometheus.Gauge
}

// NewMetrics creates the job collectors under namespace and registers them
// with reg. Pass prometheus.DefaultRegisterer to expose them on the default
// /metrics handler.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total number of finished jobs",
			},
			[]string{"operation", "status"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Job run duration in seconds",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"operation"},
		),
		jobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_running",
				Help:      "Number of jobs currently running",
			},
		),
	}
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.jobsRunning.Inc()
}

func (m *Metrics) finished(op OperationType, status Status, seconds float64, wasRunning bool) {
	if m == nil {
		return
	}
	if wasRunning {
		m.jobsRunning.Dec()
		m.jobDuration.WithLabelValues(string(op)).Observe(seconds)
	}
	m.jobsTotal.WithLabelValues(string(op), string(status)).Inc()
}
