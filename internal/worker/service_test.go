package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/citymotion/tripfacts/internal/pipeline"
	"github.com/citymotion/tripfacts/internal/trigger"
	"github.com/citymotion/tripfacts/pkg/logger"
)

// queueSource replays fixed jobs then fails so Service.Run returns.
type queueSource struct {
	jobs []trigger.Job
}

func (s *queueSource) Next(_ context.Context) (trigger.Job, error) {
	if len(s.jobs) == 0 {
		return trigger.Job{}, trigger.ErrSourceClosed
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *queueSource) Close() error { return nil }

type fakeRunner struct {
	watermarks []string
	err        error
}

func (r *fakeRunner) Run(_ context.Context, watermark string) (*pipeline.Result, error) {
	r.watermarks = append(r.watermarks, watermark)
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Result{Status: pipeline.StatusOK}, nil
}

type deniedLock struct {
	acquires int
}

func (l *deniedLock) Acquire(_ context.Context) (bool, error) {
	l.acquires++
	return false, nil
}

func (l *deniedLock) Release(_ context.Context) error { return nil }

func testService(t *testing.T, params ServiceParams) *Service {
	t.Helper()
	if params.Logger == nil {
		params.Logger = logger.New(logger.Options{ServiceName: "worker-test"})
	}
	service, err := NewService(params)
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}
	return service
}

func TestServiceRunsEachJob(t *testing.T) {
	runner := &fakeRunner{}
	source := &queueSource{jobs: []trigger.Job{
		{Watermark: "2025-03-01"},
		{Watermark: "2025-03-02"},
	}}
	service := testService(t, ServiceParams{Source: source, Runner: runner})

	err := service.Run(context.Background())
	if !errors.Is(err, trigger.ErrSourceClosed) {
		t.Fatalf("expected source-closed error, got %v", err)
	}
	if len(runner.watermarks) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runner.watermarks))
	}
	if runner.watermarks[0] != "2025-03-01" || runner.watermarks[1] != "2025-03-02" {
		t.Fatalf("unexpected watermarks: %v", runner.watermarks)
	}
}

func TestServiceSkipsWhenLockDenied(t *testing.T) {
	runner := &fakeRunner{}
	lock := &deniedLock{}
	source := &queueSource{jobs: []trigger.Job{{Watermark: "2025-03-01"}}}
	service := testService(t, ServiceParams{Source: source, Runner: runner, Lock: lock})

	_ = service.Run(context.Background())
	if lock.acquires != 1 {
		t.Fatalf("expected 1 acquire attempt, got %d", lock.acquires)
	}
	if len(runner.watermarks) != 0 {
		t.Fatalf("expected no runs while lock denied, got %v", runner.watermarks)
	}
}

func TestServiceRunFailureDoesNotStopLoop(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	source := &queueSource{jobs: []trigger.Job{
		{Watermark: "2025-03-01"},
		{Watermark: "2025-03-02"},
	}}
	service := testService(t, ServiceParams{Source: source, Runner: runner})

	_ = service.Run(context.Background())
	if len(runner.watermarks) != 2 {
		t.Fatalf("expected failures to not stop the loop, got %d runs", len(runner.watermarks))
	}
}

func TestServiceStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := NewTickerDrained(t)
	service := testService(t, ServiceParams{Source: source, Runner: &fakeRunner{}})

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// NewTickerDrained returns a source that blocks on ctx like a real ticker.
func NewTickerDrained(t *testing.T) trigger.Source {
	t.Helper()
	return blockingSource{}
}

type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (trigger.Job, error) {
	<-ctx.Done()
	return trigger.Job{}, ctx.Err()
}

func (blockingSource) Close() error { return nil }

func TestNewServiceValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "worker-test"})

	if _, err := NewService(ServiceParams{Source: &queueSource{}, Runner: &fakeRunner{}}); err == nil {
		t.Fatal("expected error when logger missing")
	}
	if _, err := NewService(ServiceParams{Logger: logg, Runner: &fakeRunner{}}); err == nil {
		t.Fatal("expected error when source missing")
	}
	if _, err := NewService(ServiceParams{Logger: logg, Source: &queueSource{}}); err == nil {
		t.Fatal("expected error when runner missing")
	}
}
