package domain

import (
	"fmt"
	"strings"
)

// OrderEventType names the order lifecycle notifications the host platform emits.
type OrderEventType string

const (
	OrderEventConfirmed OrderEventType = "order.confirmed"
	OrderEventUpdated   OrderEventType = "order.updated"
	OrderEventDeleted   OrderEventType = "order.deleted"
)

func (t OrderEventType) String() string { return string(t) }

func (t OrderEventType) IsValid() bool {
	switch t {
	case OrderEventConfirmed, OrderEventUpdated, OrderEventDeleted:
		return true
	}
	return false
}

// OrderEvent is a single order lifecycle notification. Confirmation events may
// carry several orders; update and delete events carry exactly one.
type OrderEvent struct {
	Type          OrderEventType `json:"type"`
	Orders        []Order        `json:"orders,omitempty"`
	ChangedFields []string       `json:"changedFields,omitempty"`
	OrderID       string         `json:"orderId,omitempty"`
}

func (e *OrderEvent) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", ErrValidation, e.Type)
	}

	switch e.Type {
	case OrderEventConfirmed:
		if len(e.Orders) == 0 {
			return fmt.Errorf("%w: confirmation event requires at least one order", ErrValidation)
		}
	case OrderEventUpdated:
		if len(e.Orders) != 1 {
			return fmt.Errorf("%w: update event requires exactly one order", ErrValidation)
		}
	case OrderEventDeleted:
		if strings.TrimSpace(e.OrderID) == "" {
			return fmt.Errorf("%w: delete event requires orderId", ErrValidation)
		}
		return nil
	}

	for i := range e.Orders {
		if err := e.Orders[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Touches reports whether the event's changed fields include any of fields.
func (e *OrderEvent) Touches(fields ...string) bool {
	for _, changed := range e.ChangedFields {
		for _, field := range fields {
			if strings.EqualFold(strings.TrimSpace(changed), field) {
				return true
			}
		}
	}
	return false
}
