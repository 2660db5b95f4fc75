package perf

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/recipe-app/recipe-api/internal/jobs"
	"github.com/recipe-app/recipe-api/jobs"
)

// flakyDeleter fails every nth delete.
type flakyDeleter struct {
	every int64
	calls atomic.Int64
}

func (f *flakyDeleter) Delete(ctx context.Context, key string) error {
	if f.calls.Add(1)%f.every == 0 {
		return errors.New("s3 timeout")
	}
	return nil
}

func TestJobReliabilityTargets(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	welcome := jobs.NewWelcomeJob(nil, metrics)
	cleanup := jobs.NewImageCleanupJob(&flakyDeleter{every: 20}, nil, metrics)
	ctx := context.Background()

	for i := 1; i <= 60; i++ {
		task, err := jobs.NewWelcomeTask(jobs.WelcomePayload{UserID: int64(i), Email: "cook@example.com", Name: "Cook"})
		if err != nil {
			t.Fatalf("build welcome task: %v", err)
		}
		if err := welcome.Handle(ctx, task); err != nil {
			t.Fatalf("welcome %d: %v", i, err)
		}
	}

	var failed int
	for i := 0; i < 60; i++ {
		task, err := jobs.NewImageCleanupTask("recipes/image.png")
		if err != nil {
			t.Fatalf("build cleanup task: %v", err)
		}
		if err := cleanup.Handle(ctx, task); err != nil {
			failed++
		}
	}
	if failed != 3 {
		t.Fatalf("expected 3 cleanup failures, got %d", failed)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "recipeapi_jobs_total", map[string]string{"job": jobs.TaskRecipeImageCleanup, "status": "success"})
	failure := metricValue(t, families, "recipeapi_jobs_total", map[string]string{"job": jobs.TaskRecipeImageCleanup, "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("image cleanup success ratio too low: %f", ratio)
	}
	if got := metricValue(t, families, "recipeapi_jobs_failures_total", map[string]string{"job": jobs.TaskRecipeImageCleanup}); got != 3 {
		t.Fatalf("failure counter = %f", got)
	}

	if mean := histogramMean(t, families, "recipeapi_job_duration_seconds", map[string]string{"job": jobs.TaskUserWelcome}); mean > 0.05 {
		t.Fatalf("welcome duration above budget: %f", mean)
	}
}

func BenchmarkWelcomeJob(b *testing.B) {
	job := jobs.NewWelcomeJob(nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := jobs.NewWelcomeTask(jobs.WelcomePayload{UserID: 1, Email: "cook@example.com"})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := job.Handle(ctx, task); err != nil {
			b.Fatal(err)
		}
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		val, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != val {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
