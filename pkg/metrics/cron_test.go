package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "deferred-capture"

	m.ObserveRun(job, 250*time.Millisecond, nil)
	m.ObserveRun(job, time.Second, errors.New("boom"))
	m.ObserveRun(job, time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.runs.WithLabelValues(job, outcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 success, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(job, outcomeFailure)); got != 2 {
		t.Fatalf("expected 2 failures, got %f", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)); got <= 0 {
		t.Fatalf("expected last success timestamp, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	mf := findMetricFamily(mfs, "vowmarket_cron_job_duration_seconds")
	if mf == nil {
		t.Fatal("duration histogram not registered")
	}
	metric := findLabeled(mf, "job", job)
	if metric == nil {
		t.Fatalf("duration histogram missing job=%s", job)
	}
	if got := metric.GetHistogram().GetSampleCount(); got != 3 {
		t.Fatalf("expected 3 duration samples, got %d", got)
	}
}

func TestCronJobMetricsNilRecorder(t *testing.T) {
	m := NewCronJobMetrics(nil)
	if m != nil {
		t.Fatal("expected nil recorder without registerer")
	}
	m.ObserveRun("job", time.Second, nil)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func findLabeled(mf *dto.MetricFamily, name, value string) *dto.Metric {
	for _, metric := range mf.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == name && label.GetValue() == value {
				return metric
			}
		}
	}
	return nil
}
