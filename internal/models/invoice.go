package models

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "DRAFT"
	InvoiceSent   InvoiceStatus = "SENT"
	InvoiceUnpaid InvoiceStatus = "UNPAID"
	InvoicePaid   InvoiceStatus = "PAID"
)

// ValidInvoiceStatus reports whether s is a known invoice status.
func ValidInvoiceStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoiceUnpaid, InvoicePaid:
		return true
	}
	return false
}

// Invoice is a tenant-scoped invoice. Number is unique per organization and
// locked once the invoice exists.
type Invoice struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	CustomerID     uuid.UUID     `json:"customer_id"`
	Number         string        `json:"number"`
	Date           time.Time     `json:"date"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
	TotalCents     int64         `json:"total_cents"`
	Currency       string        `json:"currency"`
	Status         InvoiceStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// InvoiceWithCustomer is an invoice joined with its customer's name for
// list responses.
type InvoiceWithCustomer struct {
	Invoice
	CustomerName string `json:"customerName"`
}
