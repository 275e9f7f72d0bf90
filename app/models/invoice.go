package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	InvoiceStatusUnpaid = "unpaid"
	InvoiceStatusPaid   = "paid"
)

// Invoice is one billing-cycle charge against a service. Amount is copied
// from the package price at generation time and never recomputed. Invoices
// are never deleted.
type Invoice struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Number      string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"number"`
	ServiceID   uint       `gorm:"not null;index" json:"service_id"`
	Service     *Service   `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	Amount      int64      `gorm:"not null" json:"amount"`
	Status      string     `gorm:"type:varchar(20);default:'unpaid';index" json:"status"`
	InvoiceDate time.Time  `gorm:"type:date;not null" json:"invoice_date"`
	DueDate     time.Time  `gorm:"type:date;not null;index" json:"due_date"`
	PaidAt      *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	PaymentLink string     `gorm:"type:varchar(512);default:null" json:"payment_link,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewInvoiceNumber builds a human-facing invoice reference like
// INV-202608-1A2B3C4D.
func NewInvoiceNumber(invoiceDate time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", invoiceDate.Format("200601"), suffix)
}

// IsPaid reports whether the invoice has been settled.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsOverdue reports whether the invoice is unpaid and past its due date by
// more than the grace period, relative to the given day.
func (i *Invoice) IsOverdue(today time.Time, gracePeriodDays int) bool {
	if i.Status != InvoiceStatusUnpaid {
		return false
	}
	cutoff := today.AddDate(0, 0, -gracePeriodDays)
	return i.DueDate.Before(cutoff)
}
