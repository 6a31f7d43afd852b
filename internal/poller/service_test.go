package poller

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testJob struct {
	name string
	err  error
	runs int32
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	atomic.AddInt32(&t.runs, 1)
	return t.err
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(reg)
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(success, failure),
		Metrics:  jobMetrics,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if !service.RunCycle(context.Background()) {
		t.Fatalf("expected cycle to run")
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", success.runs, failure.runs)
	}
	expected := `
# HELP storefront_job_failure_total Failed background job executions.
# TYPE storefront_job_failure_total counter
storefront_job_failure_total{job="fail"} 1
# HELP storefront_job_success_total Successful background job executions.
# TYPE storefront_job_success_total counter
storefront_job_success_total{job="success"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"storefront_job_success_total", "storefront_job_failure_total"); err != nil {
		t.Fatalf("unexpected job metrics: %v", err)
	}
}

func TestRunCycleSkipsWhenBusy(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job)})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	service.cycle.Lock()
	if service.RunCycle(context.Background()) {
		t.Fatalf("expected busy cycle to be skipped")
	}
	service.cycle.Unlock()
	if job.runs != 0 {
		t.Fatalf("expected no runs, got %d", job.runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "tick"}
	service, err := NewService(ServiceParams{
		Logger:         logger.Nop(),
		Registry:       NewRegistry(job),
		Interval:       5 * time.Millisecond,
		RunImmediately: true,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&job.runs) < 2 {
		select {
		case <-deadline:
			t.Fatalf("job did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop")
	}
}

func TestNewServiceRequiresLogger(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error for missing logger")
	}
}
