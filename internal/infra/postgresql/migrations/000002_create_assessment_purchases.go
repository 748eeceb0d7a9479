package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"gorm.io/gorm"
)

func createAssessmentPurchasesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_assessment_purchases",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.AssessmentPurchaseModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AssessmentPurchaseModel{})
		},
	}
}
