package repository

import (
	"time"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
)

// PurchaseLogModel is the persistence model for the purchase_logs table.
type PurchaseLogModel struct {
	ID                  string                    `gorm:"type:uuid;primaryKey"`
	Reference           string                    `gorm:"type:varchar(64);not null"`
	OrderID             *string                   `gorm:"type:varchar(64)"`
	CustomerID          string                    `gorm:"type:varchar(64);not null"`
	CustomerName        string                    `gorm:"type:varchar(255);not null;default:''"`
	CustomerEmail       string                    `gorm:"type:varchar(255);not null;default:''"`
	CustomerPhone       string                    `gorm:"type:varchar(64);not null;default:''"`
	AssessmentName      string                    `gorm:"type:varchar(255);not null;default:''"`
	AssessmentProductID *string                   `gorm:"type:varchar(64)"`
	PurchaseDate        time.Time                 `gorm:"type:timestamptz;not null"`
	AmountTotal         float64                   `gorm:"type:numeric(14,2);not null;default:0"`
	Currency            string                    `gorm:"type:varchar(3);not null;default:''"`
	PaymentStatus       domain.PaymentStatus      `gorm:"type:varchar(20);not null"`
	RegistrationStatus  domain.RegistrationStatus `gorm:"type:varchar(20);not null"`
	ExternalUserID      *string                   `gorm:"type:varchar(255)"`
	RawAPIResponse      *string                   `gorm:"column:raw_api_response;type:text"`
	EmailSent           bool                      `gorm:"not null;default:false"`
	EmailSentAt         *time.Time                `gorm:"type:timestamptz"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (PurchaseLogModel) TableName() string {
	return "purchase_logs"
}

// AssessmentPurchaseModel is the persistence model for assessment_purchases.
type AssessmentPurchaseModel struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"type:varchar(255);not null"`
	PurchaseDataJSON string `gorm:"column:purchase_data_json;type:text;not null"`
	CreatedAt        time.Time
}

func (AssessmentPurchaseModel) TableName() string {
	return "assessment_purchases"
}

// EmailTemplateModel is the persistence model for email_templates.
type EmailTemplateModel struct {
	Key       string `gorm:"type:varchar(128);primaryKey"`
	Subject   string `gorm:"type:varchar(255);not null"`
	Body      string `gorm:"type:text;not null"`
	IsHTML    bool   `gorm:"column:is_html;not null;default:true"`
	UpdatedAt time.Time
}

func (EmailTemplateModel) TableName() string {
	return "email_templates"
}

// ConfigParameterModel is the persistence model for config_parameters.
type ConfigParameterModel struct {
	Key       string `gorm:"type:varchar(128);primaryKey"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (ConfigParameterModel) TableName() string {
	return "config_parameters"
}

func purchaseLogModelFromDomain(l *domain.PurchaseLog) *PurchaseLogModel {
	if l == nil {
		return nil
	}

	return &PurchaseLogModel{
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
		PaymentStatus:       l.PaymentStatus,
		RegistrationStatus:  l.RegistrationStatus,
		ExternalUserID:      l.ExternalUserID,
		RawAPIResponse:      l.RawAPIResponse,
		EmailSent:           l.EmailSent,
		EmailSentAt:         l.EmailSentAt,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func purchaseLogModelToDomain(m *PurchaseLogModel) *domain.PurchaseLog {
	if m == nil {
		return nil
	}

	return &domain.PurchaseLog{
		ID:                  m.ID,
		Reference:           m.Reference,
		OrderID:             m.OrderID,
		CustomerID:          m.CustomerID,
		CustomerName:        m.CustomerName,
		CustomerEmail:       m.CustomerEmail,
		CustomerPhone:       m.CustomerPhone,
		AssessmentName:      m.AssessmentName,
		AssessmentProductID: m.AssessmentProductID,
		PurchaseDate:        m.PurchaseDate,
		AmountTotal:         m.AmountTotal,
		Currency:            m.Currency,
		PaymentStatus:       m.PaymentStatus,
		RegistrationStatus:  m.RegistrationStatus,
		ExternalUserID:      m.ExternalUserID,
		RawAPIResponse:      m.RawAPIResponse,
		EmailSent:           m.EmailSent,
		EmailSentAt:         m.EmailSentAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func assessmentPurchaseModelToDomain(m *AssessmentPurchaseModel) *domain.AssessmentPurchase {
	if m == nil {
		return nil
	}

	return &domain.AssessmentPurchase{
		ID:               m.ID,
		Name:             m.Name,
		PurchaseDataJSON: m.PurchaseDataJSON,
		CreatedAt:        m.CreatedAt,
	}
}

func emailTemplateModelToDomain(m *EmailTemplateModel) *domain.EmailTemplate {
	if m == nil {
		return nil
	}

	return &domain.EmailTemplate{
		Key:       m.Key,
		Subject:   m.Subject,
		Body:      m.Body,
		IsHTML:    m.IsHTML,
		UpdatedAt: m.UpdatedAt,
	}
}

func configParameterModelToDomain(m *ConfigParameterModel) *domain.ConfigParameter {
	if m == nil {
		return nil
	}

	return &domain.ConfigParameter{
		Key:       m.Key,
		Value:     m.Value,
		UpdatedAt: m.UpdatedAt,
	}
}
