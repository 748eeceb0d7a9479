package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ParameterRepository interface {
	Get(ctx context.Context, key string) (*domain.ConfigParameter, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) error
}

type GormParameterRepo struct {
	db *gorm.DB
}

func NewGormParameterRepo(db *gorm.DB) *GormParameterRepo {
	return &GormParameterRepo{db: db}
}

var _ ParameterRepository = (*GormParameterRepo)(nil)

func (r *GormParameterRepo) Get(ctx context.Context, key string) (*domain.ConfigParameter, error) {
	var model ConfigParameterModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return configParameterModelToDomain(&model), nil
}

func (r *GormParameterRepo) Set(ctx context.Context, key, value string) error {
	model := ConfigParameterModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model).Error
}

// SetIfAbsent stores value only when key has no value yet.
func (r *GormParameterRepo) SetIfAbsent(ctx context.Context, key, value string) error {
	model := ConfigParameterModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&model).Error
}
