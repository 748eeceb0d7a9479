package migrations

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const registrationTemplateBody = `<p>Hello {{.CustomerName}},</p>
<p>Thank you for purchasing <strong>{{.AssessmentName}}</strong> (order {{.Reference}}).</p>
<p>Your assessment account has been created{{if .ExternalUserID}} with user id <strong>{{.ExternalUserID}}</strong>{{end}}.
You will receive a separate message with instructions to start your assessment.</p>
<p>Best regards</p>`

func createEmailTemplatesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_email_templates",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmailTemplateModel{}); err != nil {
				return err
			}
			seed := repository.EmailTemplateModel{
				Key:       "disc_registration",
				Subject:   "Your {{.AssessmentName}} registration is confirmed",
				Body:      registrationTemplateBody,
				IsHTML:    true,
				UpdatedAt: time.Now().UTC(),
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmailTemplateModel{})
		},
	}
}
