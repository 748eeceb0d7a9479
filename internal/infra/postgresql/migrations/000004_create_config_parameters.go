package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"gorm.io/gorm"
)

func createConfigParametersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_config_parameters",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.ConfigParameterModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ConfigParameterModel{})
		},
	}
}
