package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
)

// DefaultOrderEventsQueue is the work queue order events are consumed from.
const DefaultOrderEventsQueue = "orders.events"

// Publisher publishes order events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event domain.OrderEvent) error
	Close() error
}

// MessageHandler handles a consumed order event.
type MessageHandler func(ctx context.Context, event domain.OrderEvent) error

// Consumer consumes order events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.orders.events.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", strings.TrimSpace(queue))
}
