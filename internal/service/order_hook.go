package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"github.com/kursadbilgin/purchase-notifier/internal/lock"
	"github.com/kursadbilgin/purchase-notifier/internal/observability"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"go.uber.org/zap"
)

// PurchaseLogWorkflow is the part of the purchase log service the hook drives.
type PurchaseLogWorkflow interface {
	CreateLog(ctx context.Context, log *domain.PurchaseLog) (*domain.PurchaseLog, error)
	SendToExternal(ctx context.Context, logID string) (bool, error)
	SendNotificationEmail(ctx context.Context, logID string) error
}

// OrderHook reacts to order lifecycle events and creates at most one purchase
// log per order.
type OrderHook struct {
	logs     repository.PurchaseLogRepository
	workflow PurchaseLogWorkflow
	locker   lock.Locker
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewOrderHook(
	logs repository.PurchaseLogRepository,
	workflow PurchaseLogWorkflow,
	locker lock.Locker,
	logger *zap.Logger,
) (*OrderHook, error) {
	if logs == nil {
		return nil, fmt.Errorf("purchase log repository is required")
	}
	if workflow == nil {
		return nil, fmt.Errorf("purchase log workflow is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrderHook{
		logs:     logs,
		workflow: workflow,
		locker:   locker,
		logger:   logger,
	}, nil
}

func (h *OrderHook) SetMetrics(metrics *observability.Metrics) {
	h.metrics = metrics
}

// HandleEvent validates an order event and dispatches it.
func (h *OrderHook) HandleEvent(ctx context.Context, event domain.OrderEvent) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := event.Validate(); err != nil {
		h.metrics.IncOrderEvent(event.Type.String(), "invalid")
		return err
	}

	var err error
	switch event.Type {
	case domain.OrderEventConfirmed:
		err = h.OnOrderConfirmed(ctx, event.Orders...)
	case domain.OrderEventUpdated:
		err = h.OnOrderUpdated(ctx, event.Orders[0], event.ChangedFields)
	case domain.OrderEventDeleted:
		err = h.OnOrderDeleted(ctx, event.OrderID)
	}

	if err != nil {
		h.metrics.IncOrderEvent(event.Type.String(), "error")
		return err
	}
	h.metrics.IncOrderEvent(event.Type.String(), "ok")
	return nil
}

// OnOrderConfirmed runs the creation routine for every confirmed order that is
// invoiced or in the sale state.
func (h *OrderHook) OnOrderConfirmed(ctx context.Context, orders ...domain.Order) error {
	var errs []error
	for _, order := range orders {
		if order.InvoiceStatus != domain.InvoiceStatusInvoiced && order.State != domain.OrderStateSale {
			continue
		}

		created, err := h.MaybeCreatePurchaseLog(ctx, order)
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if created != nil {
			h.metrics.IncPurchaseLogCreated(domain.OrderEventConfirmed.String())
		}
	}
	return errors.Join(errs...)
}

// OnOrderUpdated runs the creation routine when a state or invoicing change
// leaves the order in the sale state.
func (h *OrderHook) OnOrderUpdated(ctx context.Context, order domain.Order, changedFields []string) error {
	event := domain.OrderEvent{ChangedFields: changedFields}
	if !event.Touches(domain.OrderFieldInvoiceStatus, domain.OrderFieldState) {
		return nil
	}
	if order.State != domain.OrderStateSale {
		return nil
	}

	created, err := h.MaybeCreatePurchaseLog(ctx, order)
	if err != nil {
		return fmt.Errorf("order %s: %w", order.ID, err)
	}
	if created != nil {
		h.metrics.IncPurchaseLogCreated(domain.OrderEventUpdated.String())
	}
	return nil
}

// OnOrderDeleted removes the purchase logs of a deleted order.
func (h *OrderHook) OnOrderDeleted(ctx context.Context, orderID string) error {
	ctx = observability.WithOrderID(ctx, orderID)

	deleted, err := h.logs.DeleteByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete purchase logs for order %s: %w", orderID, err)
	}

	observability.WithContextLogger(h.logger, ctx).Info("purchase logs deleted with order",
		zap.Int64("deleted", deleted),
	)
	return nil
}

// MaybeCreatePurchaseLog creates the purchase log for order unless one already
// exists, then registers the customer and sends the confirmation email on
// success. It returns nil when no log was created. Failures after the log is
// persisted are recorded on the log and logged, never returned.
func (h *OrderHook) MaybeCreatePurchaseLog(ctx context.Context, order domain.Order) (*domain.PurchaseLog, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithOrderID(ctx, order.ID)
	logger := observability.WithContextLogger(h.logger, ctx).With(zap.String("reference", order.Name))

	created, err := h.createOnce(ctx, order, logger)
	if err != nil || created == nil {
		return nil, err
	}

	sent, err := h.workflow.SendToExternal(ctx, created.ID)
	if err != nil {
		logger.Error("failed to send purchase to registration endpoint",
			zap.String("purchaseLogId", created.ID),
			zap.Error(err),
		)
		return created, nil
	}
	if !sent {
		return created, nil
	}

	if err := h.workflow.SendNotificationEmail(ctx, created.ID); err != nil {
		logger.Error("failed to send notification email",
			zap.String("purchaseLogId", created.ID),
			zap.Error(err),
		)
	}
	return created, nil
}

// purchaseLogFromOrder snapshots order data. Payment is recorded as paid.
func purchaseLogFromOrder(order domain.Order) *domain.PurchaseLog {
	orderID := order.ID
	log := &domain.PurchaseLog{
		Reference:          order.Name,
		OrderID:            &orderID,
		CustomerID:         order.Customer.ID,
		CustomerName:       order.Customer.Name,
		CustomerEmail:      order.Customer.Email,
		CustomerPhone:      order.Customer.ContactPhone(),
		AmountTotal:        order.AmountTotal,
		Currency:           order.Currency,
		PaymentStatus:      domain.PaymentStatusPaid,
		RegistrationStatus: domain.RegistrationStatusNotSent,
	}

	if product, ok := order.AssessmentProduct(); ok {
		productID := product.ID
		log.AssessmentName = product.Name
		log.AssessmentProductID = &productID
	}
	return log
}

// createOnce runs the existence check and the insert under the order lock.
// The lock is released before the slow registration and email steps.
func (h *OrderHook) createOnce(ctx context.Context, order domain.Order, logger *zap.Logger) (*domain.PurchaseLog, error) {
	if h.locker != nil {
		release, err := h.locker.Acquire(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock order: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release order lock", zap.Error(err))
			}
		}()
	}

	exists, err := h.logs.ExistsForOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing purchase log: %w", err)
	}
	if exists {
		logger.Info("purchase log already exists for order")
		return nil, nil
	}

	created, err := h.workflow.CreateLog(ctx, purchaseLogFromOrder(order))
	if errors.Is(err, domain.ErrConflict) {
		logger.Info("purchase log already exists for order")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase log: %w", err)
	}
	return created, nil
}
