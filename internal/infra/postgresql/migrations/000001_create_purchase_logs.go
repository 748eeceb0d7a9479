package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"gorm.io/gorm"
)

func createPurchaseLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_purchase_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PurchaseLogModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_purchase_logs_order_id ON purchase_logs (order_id) WHERE order_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_purchase_logs_registration_status ON purchase_logs (registration_status, purchase_date DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_purchase_logs_customer_id ON purchase_logs (customer_id)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PurchaseLogModel{})
		},
	}
}
