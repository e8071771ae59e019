package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks background job runs. Methods are safe on nil.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewJobMetrics() (*JobMetrics, error) {
	return NewJobMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewJobMetricsWithRegisterer(reg prometheus.Registerer) (*JobMetrics, error) {
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kay_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kay_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kay_scheduler_job_skipped_total",
			Help: "Scheduler job runs skipped because another replica held the lock.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kay_scheduler_job_duration_seconds",
			Help:    "Scheduler job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.errors, m.skipped, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *JobMetrics) IncRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *JobMetrics) IncError(job string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(job).Inc()
}

func (m *JobMetrics) IncSkipped(job string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(job).Inc()
}

func (m *JobMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

// RunsFor exposes the run counter of a job for assertions.
func (m *JobMetrics) RunsFor(job string) prometheus.Counter {
	return m.runs.WithLabelValues(job)
}

func (m *JobMetrics) ErrorsFor(job string) prometheus.Counter {
	return m.errors.WithLabelValues(job)
}
