package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsClassifiesOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("payment-reconcile", 250*time.Millisecond, nil)
	m.ObserveRun("payment-reconcile", time.Second, errors.New("gateway down"))
	m.ObserveRun("payment-reconcile", time.Minute, fmt.Errorf("sweep: %w", context.DeadlineExceeded))
	m.ObserveCycle(CycleRan)
	m.ObserveCycle(CycleSkipped)
	m.ObserveCycle(CycleSkipped)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for outcome, want := range map[string]float64{OutcomeSuccess: 1, OutcomeFailure: 1, OutcomeTimeout: 1} {
		got, err := fetchCounterValue(mfs, "cm_cron_job_runs_total", "outcome", outcome)
		if err != nil || got != want {
			t.Fatalf("outcome %s: got %f err=%v", outcome, got, err)
		}
	}
	if got, err := fetchCounterValue(mfs, "cm_cron_cycles_total", "result", CycleSkipped); err != nil || got != 2 {
		t.Fatalf("expected two skipped cycles, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "cm_cron_job_duration_seconds", "job", "payment-reconcile"); err != nil || got < 61 {
		t.Fatalf("expected durations summed, got %f err=%v", got, err)
	}

	mf := findMetricFamily(mfs, "cm_cron_job_last_success_timestamp_seconds")
	if mf == nil || len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatal("expected last success timestamp to be set once")
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	m := NewCronJobMetrics(nil)
	if m != nil {
		t.Fatal("expected nil metrics without a registry")
	}
	m.ObserveRun("x", time.Second, nil)
	m.ObserveCycle(CycleIdle)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findSeries(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findSeries(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleSum(), nil
}

// findSeries returns the first series of name carrying label=value.
func findSeries(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric, nil
			}
		}
	}
	return nil, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}
