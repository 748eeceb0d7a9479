package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"gorm.io/gorm"
)

type EmailTemplateRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.EmailTemplate, error)
}

type GormEmailTemplateRepo struct {
	db *gorm.DB
}

func NewGormEmailTemplateRepo(db *gorm.DB) *GormEmailTemplateRepo {
	return &GormEmailTemplateRepo{db: db}
}

var _ EmailTemplateRepository = (*GormEmailTemplateRepo)(nil)

func (r *GormEmailTemplateRepo) GetByKey(ctx context.Context, key string) (*domain.EmailTemplate, error) {
	var model EmailTemplateModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return emailTemplateModelToDomain(&model), nil
}
