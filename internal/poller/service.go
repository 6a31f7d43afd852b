// Package poller runs registered jobs on a fixed cadence until its context is
// canceled.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
)

const defaultInterval = 15 * time.Second

// ServiceParams configure the poller.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// RunImmediately runs one cycle before the first tick.
	RunImmediately bool
}

// Service executes registered jobs on every tick.
type Service struct {
	logg           *logger.Logger
	registry       *Registry
	metrics        *metrics.JobMetrics
	interval       time.Duration
	runImmediately bool

	// cycle keeps a slow cycle from overlapping the next tick.
	cycle sync.Mutex
}

// NewService builds a poller.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:           params.Logger,
		registry:       registry,
		metrics:        params.Metrics,
		interval:       interval,
		runImmediately: params.RunImmediately,
	}, nil
}

// Run ticks until ctx is canceled and returns ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.runImmediately {
		s.RunCycle(ctx)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Debug(ctx, "poller context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle runs every job once. It returns false without running anything
// when the previous cycle is still in progress.
func (s *Service) RunCycle(ctx context.Context) bool {
	if !s.cycle.TryLock() {
		s.logg.Info(ctx, "previous poll cycle still running; skipping")
		return false
	}
	defer s.cycle.Unlock()
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return true
		}
		s.runJob(ctx, job)
	}
	return true
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "poller.job")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Debug(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
}
