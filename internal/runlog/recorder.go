package runlog

import (
	"context"

	"github.com/citymotion/tripfacts/internal/pipeline"
)

// Recorder adapts the repository to the pipeline's Recorder port.
type Recorder struct {
	repo Repository
}

// NewRecorder wraps a repository for use by the pipeline runner.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record persists one terminal run state.
func (r *Recorder) Record(ctx context.Context, rec pipeline.RunRecord) error {
	run := &Run{
		ID:          rec.ID,
		Watermark:   rec.Watermark,
		Status:      rec.Status,
		Files:       rec.Files,
		RowsRead:    rec.RowsRead,
		RowsDropped: rec.RowsDropped,
		RowsOutput:  rec.RowsOutput,
		DurationMS:  rec.DurationMS,
		FactsPath:   rec.FactsPath,
		AggsPath:    rec.AggsPath,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
	}
	if rec.Error != "" {
		msg := rec.Error
		run.Error = &msg
	}
	return r.repo.Create(ctx, run)
}
