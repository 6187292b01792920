// Package metrics exposes automan's Prometheus gauges/counters for a
// long-running driver process (one submitting many jobs over a
// RunAll) to be scraped from: how many jobs are in flight, how many
// workers exist, how scheduling and job execution latency trend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "automan_workers_total",
			Help: "Number of workers instantiated by the scheduler, by host",
		},
		[]string{"host"},
	)

	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "automan_jobs_total",
			Help: "Number of jobs by status (running, done, error)",
		},
		[]string{"status"},
	)

	JobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automan_jobs_submitted_total",
			Help: "Total number of jobs submitted to the scheduler",
		},
	)

	JobsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automan_jobs_failed_total",
			Help: "Total number of jobs that finished with a non-zero exit code",
		},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "automan_scheduling_latency_seconds",
			Help:    "Time Submit spent waiting for a worker able to run a job",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "automan_job_duration_seconds",
			Help:    "Wall-clock time from job submission to a terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600, 7200, 21600},
		},
	)

	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automan_tasks_total",
			Help: "Total number of tasks run, by outcome (complete, skipped, failed)",
		},
		[]string{"outcome"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automan_task_duration_seconds",
			Help:    "Time a Task.Complete/Run call took, by task name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobsSubmittedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TaskDuration)
}

// Handler returns the Prometheus HTTP handler. Nothing in this module
// mounts it; cmd/automan serves no metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
