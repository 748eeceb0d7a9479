package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	RegistrationStatus *domain.RegistrationStatus
	OrderID            *string
	Page               int
	PageSize           int
}

type PurchaseLogRepository interface {
	Create(ctx context.Context, l *domain.PurchaseLog) error
	GetByID(ctx context.Context, id string) (*domain.PurchaseLog, error)
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	List(ctx context.Context, params ListParams) ([]domain.PurchaseLog, int64, error)
	UpdateRegistration(ctx context.Context, id string, outcome domain.RegistrationOutcome) error
	MarkEmailSent(ctx context.Context, id string, sentAt time.Time) error
	DeleteByOrderID(ctx context.Context, orderID string) (int64, error)
}

type GormPurchaseLogRepo struct {
	db *gorm.DB
}

func NewGormPurchaseLogRepo(db *gorm.DB) *GormPurchaseLogRepo {
	return &GormPurchaseLogRepo{db: db}
}

var _ PurchaseLogRepository = (*GormPurchaseLogRepo)(nil)

func (r *GormPurchaseLogRepo) Create(ctx context.Context, l *domain.PurchaseLog) error {
	model := purchaseLogModelFromDomain(l)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: purchase log already exists for order: %v", domain.ErrConflict, err)
		}
		return err
	}
	if l != nil {
		*l = *purchaseLogModelToDomain(model)
	}
	return nil
}

func (r *GormPurchaseLogRepo) GetByID(ctx context.Context, id string) (*domain.PurchaseLog, error) {
	var model PurchaseLogModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return purchaseLogModelToDomain(&model), nil
}

func (r *GormPurchaseLogRepo) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PurchaseLogModel{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormPurchaseLogRepo) List(ctx context.Context, params ListParams) ([]domain.PurchaseLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&PurchaseLogModel{})

	if params.RegistrationStatus != nil {
		query = query.Where("registration_status = ?", *params.RegistrationStatus)
	}
	if params.OrderID != nil {
		query = query.Where("order_id = ?", *params.OrderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []PurchaseLogModel
	err := query.
		Order("purchase_date DESC").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	logs := make([]domain.PurchaseLog, 0, len(models))
	for i := range models {
		logs = append(logs, *purchaseLogModelToDomain(&models[i]))
	}

	return logs, total, nil
}

// UpdateRegistration always writes the status. The external user id and raw
// response are written only when set on the outcome.
func (r *GormPurchaseLogRepo) UpdateRegistration(ctx context.Context, id string, outcome domain.RegistrationOutcome) error {
	updates := map[string]any{
		"registration_status": outcome.Status,
	}
	if outcome.ExternalUserID != nil {
		updates["external_user_id"] = *outcome.ExternalUserID
	}
	if outcome.RawAPIResponse != nil {
		updates["raw_api_response"] = *outcome.RawAPIResponse
	}

	result := r.db.WithContext(ctx).
		Model(&PurchaseLogModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkEmailSent sets the email flag. The first recorded send time is kept.
func (r *GormPurchaseLogRepo) MarkEmailSent(ctx context.Context, id string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&PurchaseLogModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"email_sent":    true,
			"email_sent_at": gorm.Expr("COALESCE(email_sent_at, ?)", sentAt),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormPurchaseLogRepo) DeleteByOrderID(ctx context.Context, orderID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&PurchaseLogModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
