package poller

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(jobA)
	registry.Register(nil)
	registry.Register(jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestJobFunc(t *testing.T) {
	called := false
	job := JobFunc{JobName: "fn", Fn: func(context.Context) error { called = true; return nil }}
	if job.Name() != "fn" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil || !called {
		t.Fatalf("expected fn to run, err=%v", err)
	}
	if err := (JobFunc{JobName: "empty"}).Run(context.Background()); err != nil {
		t.Fatalf("expected nil fn to be a no-op, got %v", err)
	}
}
