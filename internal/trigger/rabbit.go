package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/citymotion/tripfacts/pkg/logger"
)

// ErrSourceClosed is returned when the delivery channel closes underneath an
// active Next call (broker restart, connection drop).
var ErrSourceClosed = errors.New("trigger source closed")

type triggerMessage struct {
	WatermarkDate string `json:"watermark_date"`
}

// RabbitSource consumes run jobs from a durable RabbitMQ queue. Message body:
// {"watermark_date":"YYYY-MM-DD"}. Malformed messages are acked and skipped
// with a warning; aborting the worker over one bad message would stall every
// later job behind it.
type RabbitSource struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	logg       *logger.Logger
}

// NewRabbitSource dials the broker, declares the queue and starts consuming.
func NewRabbitSource(url, queue string, logg *logger.Logger) (*RabbitSource, error) {
	if url == "" {
		return nil, errors.New("rabbit url is required")
	}
	if queue == "" {
		return nil, errors.New("rabbit queue is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("consume queue %q: %w", queue, err)
	}

	return &RabbitSource{conn: conn, ch: ch, deliveries: deliveries, logg: logg}, nil
}

func (s *RabbitSource) Next(ctx context.Context) (Job, error) {
	for {
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case delivery, ok := <-s.deliveries:
			if !ok {
				return Job{}, ErrSourceClosed
			}
			job, err := parseJob(delivery.Body)
			_ = delivery.Ack(false)
			if err != nil {
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "skipping invalid trigger message")
				}
				continue
			}
			return job, nil
		}
	}
}

func parseJob(body []byte) (Job, error) {
	var msg triggerMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return Job{}, fmt.Errorf("bad trigger json: %w", err)
	}
	if msg.WatermarkDate == "" {
		return Job{}, errors.New("trigger missing watermark_date")
	}
	return Job{Watermark: msg.WatermarkDate}, nil
}

func (s *RabbitSource) Close() error {
	var errs []error
	if s.ch != nil {
		if err := s.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
