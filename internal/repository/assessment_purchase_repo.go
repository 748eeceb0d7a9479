package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"gorm.io/gorm"
)

type AssessmentPurchaseRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.AssessmentPurchase, error)
}

type GormAssessmentPurchaseRepo struct {
	db *gorm.DB
}

func NewGormAssessmentPurchaseRepo(db *gorm.DB) *GormAssessmentPurchaseRepo {
	return &GormAssessmentPurchaseRepo{db: db}
}

var _ AssessmentPurchaseRepository = (*GormAssessmentPurchaseRepo)(nil)

func (r *GormAssessmentPurchaseRepo) GetByID(ctx context.Context, id int64) (*domain.AssessmentPurchase, error) {
	var model AssessmentPurchaseModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return assessmentPurchaseModelToDomain(&model), nil
}
