package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"github.com/kursadbilgin/purchase-notifier/internal/observability"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"go.uber.org/zap"
)

type PurchaseLogService interface {
	Get(ctx context.Context, id string) (*domain.PurchaseLog, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.PurchaseLog, int64, error)
	SendToExternal(ctx context.Context, logID string) (bool, error)
	SendNotificationEmail(ctx context.Context, logID string) error
}

type PurchaseLogHandler struct {
	service PurchaseLogService
	logger  *zap.Logger
}

func NewPurchaseLogHandler(service PurchaseLogService, logger *zap.Logger) (*PurchaseLogHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("purchase log service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseLogHandler{service: service, logger: logger}, nil
}

func RegisterPurchaseLogRoutes(router fiber.Router, service PurchaseLogService, logger *zap.Logger) error {
	h, err := NewPurchaseLogHandler(service, logger)
	if err != nil {
		return err
	}

	router.Get("/purchase-logs", h.ListPurchaseLogs)
	router.Get("/purchase-logs/:id", h.GetPurchaseLog)
	router.Post("/purchase-logs/:id/send", h.SendPurchaseLog)
	router.Post("/purchase-logs/:id/email", h.EmailPurchaseLog)
	return nil
}

type purchaseLogResponse struct {
	ID                  string     `json:"id"`
	Reference           string     `json:"reference"`
	OrderID             *string    `json:"orderId,omitempty"`
	CustomerID          string     `json:"customerId"`
	CustomerName        string     `json:"customerName"`
	CustomerEmail       string     `json:"customerEmail"`
	CustomerPhone       string     `json:"customerPhone,omitempty"`
	AssessmentName      string     `json:"assessmentName,omitempty"`
	AssessmentProductID *string    `json:"assessmentProductId,omitempty"`
	PurchaseDate        time.Time  `json:"purchaseDate"`
	AmountTotal         float64    `json:"amountTotal"`
	Currency            string     `json:"currency,omitempty"`
	PaymentStatus       string     `json:"paymentStatus"`
	RegistrationStatus  string     `json:"registrationStatus"`
	ExternalUserID      *string    `json:"externalUserId,omitempty"`
	RawAPIResponse      *string    `json:"rawApiResponse,omitempty"`
	EmailSent           bool       `json:"emailSent"`
	EmailSentAt         *time.Time `json:"emailSentAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type listPurchaseLogsResponse struct {
	Data []purchaseLogResponse `json:"data"`
	Meta listMeta              `json:"meta"`
}

type sendPurchaseLogResponse struct {
	Sent        bool                `json:"sent"`
	EmailSent   bool                `json:"emailSent"`
	EmailError  string              `json:"emailError,omitempty"`
	PurchaseLog purchaseLogResponse `json:"purchaseLog"`
}

func (h *PurchaseLogHandler) ListPurchaseLogs(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	logs, total, err := h.service.List(requestContext(c), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]purchaseLogResponse, 0, len(logs))
	for i := range logs {
		data = append(data, toPurchaseLogResponse(&logs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listPurchaseLogsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *PurchaseLogHandler) GetPurchaseLog(c *fiber.Ctx) error {
	id, err := purchaseLogID(c)
	if err != nil {
		return err
	}

	log, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPurchaseLogResponse(log))
}

// SendPurchaseLog retries the partner registration for a log and, when it
// succeeds, sends the confirmation email. An email failure does not fail the
// request.
func (h *PurchaseLogHandler) SendPurchaseLog(c *fiber.Ctx) error {
	id, err := purchaseLogID(c)
	if err != nil {
		return err
	}
	ctx := requestContext(c)

	sent, err := h.service.SendToExternal(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}

	resp := sendPurchaseLogResponse{Sent: sent}
	if sent {
		if err := h.service.SendNotificationEmail(ctx, id); err != nil {
			observability.WithContextLogger(h.logger, ctx).Error("failed to send notification email",
				zap.String("purchaseLogId", id),
				zap.Error(err),
			)
			resp.EmailError = err.Error()
		} else {
			resp.EmailSent = true
		}
	}

	log, err := h.service.Get(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}
	resp.PurchaseLog = toPurchaseLogResponse(log)

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PurchaseLogHandler) EmailPurchaseLog(c *fiber.Ctx) error {
	id, err := purchaseLogID(c)
	if err != nil {
		return err
	}
	ctx := requestContext(c)

	if err := h.service.SendNotificationEmail(ctx, id); err != nil {
		return toHTTPError(err)
	}

	log, err := h.service.Get(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPurchaseLogResponse(log))
}

func purchaseLogID(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("id"))
	if _, err := uuid.Parse(id); err != nil {
		return "", fiber.NewError(fiber.StatusNotFound, "purchase log not found")
	}
	return id, nil
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("registrationStatus")); rawStatus != "" {
		status, err := domain.ParseRegistrationStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.RegistrationStatus = &status
	}

	if orderID := strings.TrimSpace(c.Query("orderId")); orderID != "" {
		params.OrderID = &orderID
	}

	return params, nil
}

func toPurchaseLogResponse(l *domain.PurchaseLog) purchaseLogResponse {
	if l == nil {
		return purchaseLogResponse{}
	}

	return purchaseLogResponse{
		ID:                  l.ID,
		Reference:           l.Reference,
		OrderID:             l.OrderID,
		CustomerID:          l.CustomerID,
		CustomerName:        l.CustomerName,
		CustomerEmail:       l.CustomerEmail,
		CustomerPhone:       l.CustomerPhone,
		AssessmentName:      l.AssessmentName,
		AssessmentProductID: l.AssessmentProductID,
		PurchaseDate:        l.PurchaseDate,
		AmountTotal:         l.AmountTotal,
		Currency:            l.Currency,
		PaymentStatus:       l.PaymentStatus.String(),
		RegistrationStatus:  l.RegistrationStatus.String(),
		ExternalUserID:      l.ExternalUserID,
		RawAPIResponse:      l.RawAPIResponse,
		EmailSent:           l.EmailSent,
		EmailSentAt:         l.EmailSentAt,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}
