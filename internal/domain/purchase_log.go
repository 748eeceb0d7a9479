package domain

import (
	"fmt"
	"strings"
	"time"
)

// PaymentStatus is the payment state captured on a purchase log.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// RegistrationStatus tracks the partner registration call for a purchase log.
type RegistrationStatus string

const (
	RegistrationStatusNotSent RegistrationStatus = "not_sent"
	RegistrationStatusSent    RegistrationStatus = "sent"
	RegistrationStatusFailed  RegistrationStatus = "failed"
)

func (s RegistrationStatus) String() string { return string(s) }

func (s RegistrationStatus) IsValid() bool {
	switch s {
	case RegistrationStatusNotSent, RegistrationStatusSent, RegistrationStatusFailed:
		return true
	}
	return false
}

func ParseRegistrationStatusFromString(s string) (RegistrationStatus, error) {
	st := RegistrationStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid registration status %q", ErrValidation, s)
	}
	return st, nil
}

// PurchaseLog is the audit record of one order registration attempt. Customer
// and order fields are snapshots taken at creation time.
type PurchaseLog struct {
	ID                  string
	Reference           string
	OrderID             *string
	CustomerID          string
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	AssessmentName      string
	AssessmentProductID *string
	PurchaseDate        time.Time
	AmountTotal         float64
	Currency            string
	PaymentStatus       PaymentStatus
	RegistrationStatus  RegistrationStatus
	ExternalUserID      *string
	RawAPIResponse      *string
	EmailSent           bool
	EmailSentAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (l *PurchaseLog) Validate() error {
	if strings.TrimSpace(l.Reference) == "" {
		return fmt.Errorf("%w: reference is required", ErrValidation)
	}
	if strings.TrimSpace(l.CustomerID) == "" {
		return fmt.Errorf("%w: customer is required", ErrValidation)
	}
	if !l.PaymentStatus.IsValid() {
		return fmt.Errorf("%w: invalid payment status %q", ErrValidation, l.PaymentStatus)
	}
	if !l.RegistrationStatus.IsValid() {
		return fmt.Errorf("%w: invalid registration status %q", ErrValidation, l.RegistrationStatus)
	}
	return nil
}

// RegistrationOutcome is the part of a purchase log written after a partner call.
type RegistrationOutcome struct {
	Status         RegistrationStatus
	ExternalUserID *string
	RawAPIResponse *string
}
