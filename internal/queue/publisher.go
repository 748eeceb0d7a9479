package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"github.com/kursadbilgin/purchase-notifier/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

var _ Publisher = (*RabbitMQPublisher)(nil)

type RabbitMQPublisher struct {
	client *RabbitMQ
	queue  string
}

// NewRabbitMQPublisher returns a publisher whose HandleEvent enqueues to queue.
func NewRabbitMQPublisher(client *RabbitMQ, queue string) *RabbitMQPublisher {
	if queue == "" {
		queue = DefaultOrderEventsQueue
	}
	return &RabbitMQPublisher{client: client, queue: queue}
}

// HandleEvent validates event and enqueues it for the consumer.
func (p *RabbitMQPublisher) HandleEvent(ctx context.Context, event domain.OrderEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return p.Publish(ctx, p.queue, event)
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, event domain.OrderEvent) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	publishing, err := newPublishing(ctx, event)
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}

	return nil
}

func newPublishing(ctx context.Context, event domain.OrderEvent) (amqp.Publishing, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal order event: %w", err)
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		MessageId:     uuid.NewString(),
		CorrelationId: correlationID,
		Type:          event.Type.String(),
		Body:          payload,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
