package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
)

type AssessmentPurchaseReader interface {
	GetByID(ctx context.Context, id int64) (*domain.AssessmentPurchase, error)
}

type ExportHandler struct {
	purchases AssessmentPurchaseReader
}

func NewExportHandler(purchases AssessmentPurchaseReader) (*ExportHandler, error) {
	if purchases == nil {
		return nil, fmt.Errorf("assessment purchase reader is required")
	}
	return &ExportHandler{purchases: purchases}, nil
}

func RegisterExportRoutes(router fiber.Router, purchases AssessmentPurchaseReader, authMiddleware fiber.Handler) error {
	h, err := NewExportHandler(purchases)
	if err != nil {
		return err
	}

	router.Get("/assessment/purchase/export/:purchaseId", authMiddleware, h.ExportPurchase)
	return nil
}

// ExportPurchase serves the stored purchase payload verbatim as a JSON download.
func (h *ExportHandler) ExportPurchase(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Params("purchaseId")), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusNotFound, "assessment purchase not found")
	}

	purchase, err := h.purchases.GetByID(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=assessment_purchase_%s.json", purchase.Name))
	return c.Status(fiber.StatusOK).SendString(purchase.PurchaseDataJSON)
}
