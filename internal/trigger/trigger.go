// Package trigger decides when the worker executes a pipeline run: on a fixed
// interval, or on demand from a RabbitMQ job queue.
package trigger

import (
	"context"
	"time"
)

// Job is one requested pipeline run.
type Job struct {
	Watermark string
}

// Source yields the next run to execute. Next blocks until a job is due, the
// source is exhausted, or the context is canceled.
type Source interface {
	Next(ctx context.Context) (Job, error)
	Close() error
}

// TickerSource emits a job per interval. The first job is emitted
// immediately so a freshly started worker does not idle a full interval.
type TickerSource struct {
	interval  time.Duration
	watermark string
	now       func() time.Time
	ticker    *time.Ticker
	started   bool
}

// NewTickerSource builds an interval source. An empty watermark means "the
// current UTC date at tick time".
func NewTickerSource(interval time.Duration, watermark string, now func() time.Time) *TickerSource {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TickerSource{interval: interval, watermark: watermark, now: now}
}

func (s *TickerSource) Next(ctx context.Context) (Job, error) {
	if !s.started {
		s.started = true
		s.ticker = time.NewTicker(s.interval)
		return s.job(), nil
	}

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-s.ticker.C:
		return s.job(), nil
	}
}

func (s *TickerSource) job() Job {
	watermark := s.watermark
	if watermark == "" {
		watermark = s.now().UTC().Format("2006-01-02")
	}
	return Job{Watermark: watermark}
}

func (s *TickerSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}
