package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron job outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// Cron cycle results.
const (
	CycleRan     = "ran"
	CycleSkipped = "skipped"
	CycleIdle    = "idle"
)

// CronJobMetrics tracks the maintenance jobs run by the cron worker. A nil
// receiver is a no-op.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	cycles      *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cm_cron_job_runs_total",
			Help: "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cm_cron_job_duration_seconds",
			Help:    "Wall time of cron job runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 6),
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cm_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cm_cron_cycles_total",
			Help: "Scheduler ticks by result: ran, skipped (lock held elsewhere) or idle (nothing due).",
		}, []string{"result"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.cycles)
	return m
}

// ObserveRun records one job execution. A run that hit its deadline counts
// as a timeout rather than a plain failure.
func (c *CronJobMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
	c.runs.WithLabelValues(job, runOutcome(err)).Inc()
	if err == nil {
		c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

func (c *CronJobMetrics) ObserveCycle(result string) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(normalizeLabel(result)).Inc()
}

func runOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeFailure
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
