package domain

import (
	"fmt"
	"strings"
)

// OrderState mirrors the host platform's sales order state.
type OrderState string

const (
	OrderStateDraft  OrderState = "draft"
	OrderStateSent   OrderState = "sent"
	OrderStateSale   OrderState = "sale"
	OrderStateDone   OrderState = "done"
	OrderStateCancel OrderState = "cancel"
)

func (s OrderState) String() string { return string(s) }

// InvoiceStatus mirrors the host platform's order invoicing status.
type InvoiceStatus string

const (
	InvoiceStatusNothing   InvoiceStatus = "no"
	InvoiceStatusToInvoice InvoiceStatus = "to invoice"
	InvoiceStatusInvoiced  InvoiceStatus = "invoiced"
	InvoiceStatusUpselling InvoiceStatus = "upselling"
)

func (s InvoiceStatus) String() string { return string(s) }

// Order field names reported in update events.
const (
	OrderFieldState         = "state"
	OrderFieldInvoiceStatus = "invoice_status"
)

// AssessmentCategory is the product category that marks an assessment product.
const AssessmentCategory = "Assessment"

type Customer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

// ContactPhone returns the phone number, falling back to the mobile number.
func (c Customer) ContactPhone() string {
	if phone := strings.TrimSpace(c.Phone); phone != "" {
		return phone
	}
	return strings.TrimSpace(c.Mobile)
}

type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CategoryName string `json:"categoryName,omitempty"`
}

// IsAssessment reports whether the product counts as an assessment product.
func (p Product) IsAssessment() bool {
	if p.CategoryName == AssessmentCategory {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), "assessment")
}

type OrderLine struct {
	Product Product `json:"product"`
}

// Order is the host platform's sales order as delivered in order events.
type Order struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	State         OrderState    `json:"state"`
	InvoiceStatus InvoiceStatus `json:"invoiceStatus"`
	Customer      Customer      `json:"customer"`
	Lines         []OrderLine   `json:"lines"`
	AmountTotal   float64       `json:"amountTotal"`
	Currency      string        `json:"currency"`
}

func (o *Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: order name is required", ErrValidation)
	}
	if strings.TrimSpace(o.Customer.ID) == "" {
		return fmt.Errorf("%w: order customer is required", ErrValidation)
	}
	return nil
}

// AssessmentProduct returns the product of the first line that qualifies as
// an assessment product.
func (o *Order) AssessmentProduct() (Product, bool) {
	for _, line := range o.Lines {
		if line.Product.IsAssessment() {
			return line.Product, true
		}
	}
	return Product{}, false
}
