// Package worker runs the batch pipeline as a long-lived service: one run per
// trigger job, guarded by a run lock so concurrent instances never double
// process a watermark.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/citymotion/tripfacts/internal/pipeline"
	"github.com/citymotion/tripfacts/internal/trigger"
	"github.com/citymotion/tripfacts/pkg/logger"
)

// Runner executes one pipeline batch.
type Runner interface {
	Run(ctx context.Context, watermark string) (*pipeline.Result, error)
}

// ServiceParams configure the worker service.
type ServiceParams struct {
	Logger *logger.Logger
	Source trigger.Source
	Runner Runner
	Lock   Lock
}

// Service consumes trigger jobs and executes pipeline runs until its context
// is canceled.
type Service struct {
	logg   *logger.Logger
	source trigger.Source
	runner Runner
	lock   Lock
}

// NewService builds a worker service. A missing lock falls back to an
// in-process lock.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("trigger source required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("runner required")
	}
	lock := params.Lock
	if lock == nil {
		lock = NewLocalLock()
	}
	return &Service{
		logg:   params.Logger,
		source: params.Source,
		runner: params.Runner,
		lock:   lock,
	}, nil
}

// Run processes trigger jobs until the context is canceled or the source is
// exhausted. Individual run failures are logged and do not stop the loop.
func (s *Service) Run(ctx context.Context) error {
	for {
		job, err := s.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logg.Info(ctx, "worker context canceled")
				return ctx.Err()
			}
			return fmt.Errorf("next trigger job: %w", err)
		}
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job trigger.Job) {
	jobCtx := s.logg.WithWatermark(ctx, job.Watermark)

	locked, err := s.lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "failed to acquire run lock", err)
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "another worker holds the run lock; skipping this job")
		return
	}
	defer func() {
		if relErr := s.lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release run lock", relErr)
		}
	}()

	s.logg.Info(jobCtx, "run start")
	start := time.Now()
	result, err := s.runner.Run(jobCtx, job.Watermark)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "run failed", err)
		return
	}
	s.logg.Info(s.logg.WithField(jobCtx, "status", result.Status), "run completed")
}
