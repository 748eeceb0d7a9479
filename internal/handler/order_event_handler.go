package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
)

type OrderEventProcessor interface {
	HandleEvent(ctx context.Context, event domain.OrderEvent) error
}

type OrderEventHandler struct {
	processor OrderEventProcessor
}

func NewOrderEventHandler(processor OrderEventProcessor) (*OrderEventHandler, error) {
	if processor == nil {
		return nil, fmt.Errorf("order event processor is required")
	}
	return &OrderEventHandler{processor: processor}, nil
}

func RegisterOrderEventRoutes(router fiber.Router, processor OrderEventProcessor) error {
	h, err := NewOrderEventHandler(processor)
	if err != nil {
		return err
	}

	router.Post("/order-events", h.HandleOrderEvent)
	return nil
}

// HandleOrderEvent hands an order lifecycle event to the processor, which either
// handles it inline or enqueues it.
func (h *OrderEventHandler) HandleOrderEvent(c *fiber.Ctx) error {
	var event domain.OrderEvent
	if err := c.BodyParser(&event); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.processor.HandleEvent(requestContext(c), event); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"type":   event.Type.String(),
		"status": "accepted",
	})
}
