// Package notify announces finished pipeline runs on Pub/Sub so downstream
// consumers learn that a new fact partition landed without polling the
// output directory.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gpubsub "cloud.google.com/go/pubsub/v2"

	"github.com/citymotion/tripfacts/internal/pipeline"
	"github.com/citymotion/tripfacts/pkg/logger"
	"github.com/citymotion/tripfacts/pkg/pubsub"
)

// EventRunCompleted is the event_type attribute stamped on every message.
const EventRunCompleted = "pipeline.run_completed"

// RunCompletedEvent is the message payload.
type RunCompletedEvent struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Watermark   string    `json:"watermark"`
	FactsPath   string    `json:"facts_path,omitempty"`
	AggsPath    string    `json:"aggs_path,omitempty"`
	RowsRead    int       `json:"rows_read"`
	RowsDropped int       `json:"rows_dropped"`
	RowsOutput  int       `json:"rows_output"`
	FinishedAt  time.Time `json:"finished_at"`
}

type publishFunc func(ctx context.Context, data []byte, attrs map[string]string) error

// Publisher publishes run-completed events.
type Publisher struct {
	publish publishFunc
	logg    *logger.Logger
}

// NewPublisher binds the configured runs topic.
func NewPublisher(client *pubsub.Client, logg *logger.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client required")
	}
	pub := client.RunsPublisher()
	if pub == nil {
		return nil, errors.New("runs topic not configured")
	}

	publish := func(ctx context.Context, data []byte, attrs map[string]string) error {
		result := pub.Publish(ctx, &gpubsub.Message{Data: data, Attributes: attrs})
		_, err := result.Get(ctx)
		return err
	}

	return &Publisher{publish: publish, logg: logg}, nil
}

// Publish sends one run-completed event. The message carries event_type and
// watermark attributes so consumers can filter without decoding the payload.
func (p *Publisher) Publish(ctx context.Context, rec pipeline.RunRecord) error {
	event := RunCompletedEvent{
		RunID:       rec.ID.String(),
		Status:      rec.Status,
		Watermark:   rec.Watermark,
		FactsPath:   rec.FactsPath,
		AggsPath:    rec.AggsPath,
		RowsRead:    rec.RowsRead,
		RowsDropped: rec.RowsDropped,
		RowsOutput:  rec.RowsOutput,
		FinishedAt:  rec.FinishedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	attrs := map[string]string{
		"event_type": EventRunCompleted,
		"watermark":  rec.Watermark,
	}
	if err := p.publish(ctx, data, attrs); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}

	if p.logg != nil {
		p.logg.Info(p.logg.WithField(ctx, "event_type", EventRunCompleted), "run event published")
	}
	return nil
}
