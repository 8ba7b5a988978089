package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics counts scheduled job outcomes per job name, exported on the
// ops /metrics endpoint.
type JobMetrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	lastRun   *prometheus.GaugeVec
	notifSent *prometheus.CounterVec
}

// NewJobMetrics registers the scheduler metrics with the given registerer.
// Passing prometheus.DefaultRegisterer wires them to /metrics.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	factory := promauto.With(reg)
	return &JobMetrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchbot_job_runs_total",
			Help: "Completed scheduled job runs by job name.",
		}, []string{"job"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchbot_job_failures_total",
			Help: "Failed scheduled job runs by job name.",
		}, []string{"job"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lunchbot_job_duration_seconds",
			Help:    "Scheduled job run duration by job name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lunchbot_job_last_run_timestamp_seconds",
			Help: "Unix time of the last successful run by job name.",
		}, []string{"job"}),
		notifSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchbot_job_notifications_total",
			Help: "Notification events published by scheduled jobs.",
		}, []string{"job"}),
	}
}

func (m *JobMetrics) recordRun(job string, seconds float64) {
	m.runs.WithLabelValues(job).Inc()
	m.duration.WithLabelValues(job).Observe(seconds)
	m.lastRun.WithLabelValues(job).SetToCurrentTime()
}

func (m *JobMetrics) recordFailure(job string) {
	m.failures.WithLabelValues(job).Inc()
}

func (m *JobMetrics) recordNotifications(job string, n int) {
	m.notifSent.WithLabelValues(job).Add(float64(n))
}
