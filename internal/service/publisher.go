// Package service delivers the side effects of booking operations: domain
// events go to RabbitMQ and stale availability is dropped from the cache.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/queue"
)

// Publisher sends booking events to the event sink.
type Publisher interface {
	Publish(ctx context.Context, events []queue.BookingEvent) error
}

// NopPublisher drops events.  Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []queue.BookingEvent) error { return nil }

// EventPublisher publishes persistent JSON messages to a durable queue on
// the default exchange.  One connection is opened per batch.
type EventPublisher struct {
	url   string
	queue string
	log   *zap.Logger
}

// NewEventPublisher returns a publisher for queueName at url.
func NewEventPublisher(url, queueName string, log *zap.Logger) *EventPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventPublisher{url: url, queue: queueName, log: log}
}

// Publish sends events in order.  The first failure aborts the batch.
func (p *EventPublisher) Publish(ctx context.Context, events []queue.BookingEvent) error {
	if len(events) == 0 {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.EventID, err)
		}
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.EventID,
			Type:         ev.Type,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
			return fmt.Errorf("publish event %s: %w", ev.EventID, err)
		}
		p.log.Debug("event published", zap.String("event_id", ev.EventID), zap.String("type", ev.Type))
	}
	return nil
}
