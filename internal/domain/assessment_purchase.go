package domain

import "time"

// AssessmentPurchase is an exported purchase record whose JSON payload is
// produced elsewhere and served verbatim.
type AssessmentPurchase struct {
	ID               int64
	Name             string
	PurchaseDataJSON string
	CreatedAt        time.Time
}

// EmailTemplate is a named, renderable email.
type EmailTemplate struct {
	Key       string
	Subject   string
	Body      string
	IsHTML    bool
	UpdatedAt time.Time
}

// ConfigParameter is a process-wide key/value setting.
type ConfigParameter struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
