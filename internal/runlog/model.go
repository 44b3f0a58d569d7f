package runlog

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Run is one persisted pipeline run, terminal states only (ok, no_data,
// failed).
type Run struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Watermark   string         `gorm:"not null;index" json:"watermark"`
	Status      string         `gorm:"not null" json:"status"`
	Files       pq.StringArray `gorm:"type:text[]" json:"files"`
	RowsRead    int            `gorm:"not null;default:0" json:"rows_read"`
	RowsDropped int            `gorm:"not null;default:0" json:"rows_dropped"`
	RowsOutput  int            `gorm:"not null;default:0" json:"rows_output"`
	DurationMS  int64          `gorm:"not null;default:0" json:"duration_ms"`
	FactsPath   string         `json:"facts_path,omitempty"`
	AggsPath    string         `json:"aggs_path,omitempty"`
	Error       *string        `json:"error,omitempty"`
	StartedAt   time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt  time.Time      `gorm:"not null;index" json:"finished_at"`
}

// TableName keeps the table aligned with the goose migration.
func (Run) TableName() string {
	return "pipeline_runs"
}
