package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
)

const (
	defaultInterval   = 5 * time.Minute
	defaultJobTimeout = 2 * time.Minute
)

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service wakes every Interval, takes the cluster lock and runs the jobs that
// are due. Job failures are logged and counted; they never stop the loop.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	jobTimeout := params.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: jobTimeout,
		now:        time.Now,
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "cron cycle failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	due := s.registry.Due(s.now())
	if len(due) == 0 {
		s.metrics.ObserveCycle(metrics.CycleIdle)
		return nil
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held elsewhere; skipping cycle")
		s.metrics.ObserveCycle(metrics.CycleSkipped)
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	s.metrics.ObserveCycle(metrics.CycleRan)
	for _, job := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	jobCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := s.now()
	err := job.Run(jobCtx)
	duration := s.now().Sub(start)
	s.registry.MarkRun(name, start)
	s.metrics.ObserveRun(name, duration, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return
	}
	s.logg.Info(jobCtx, "cron job completed")
}
