// Package runlog persists pipeline run history so reruns and no-data days can
// be audited without grepping logs.
package runlog

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository stores and reads run history.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	Latest(ctx context.Context) (*Run, error)
	LatestByWatermark(ctx context.Context, watermark string) (*Run, error)
}

// ErrNoRuns is returned when no run has been recorded yet.
var ErrNoRuns = errors.New("no pipeline runs recorded")

type repository struct {
	db *gorm.DB
}

// NewRepository builds a run-history repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, run *Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) Latest(ctx context.Context) (*Run, error) {
	var run Run
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRuns
		}
		return nil, err
	}
	return &run, nil
}

func (r *repository) LatestByWatermark(ctx context.Context, watermark string) (*Run, error) {
	var run Run
	err := r.db.WithContext(ctx).
		Where("watermark = ?", watermark).
		Order("finished_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRuns
		}
		return nil, err
	}
	return &run, nil
}
