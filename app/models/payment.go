package models

import "time"

const (
	PaymentStatusSuccess = "success"
	PaymentStatusPending = "pending"
	PaymentStatusFailed  = "failed"
)

// Payment is one applied, successful gateway transaction. The composite
// unique index on (gateway, transaction_id) is the webhook idempotency key:
// inserting a duplicate pair must fail, which the webhook processor relies on
// to make redelivered notifications a no-op. Rows are immutable once created.
type Payment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	InvoiceID     uint      `gorm:"not null;index" json:"invoice_id"`
	Invoice       *Invoice  `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Gateway       string    `gorm:"type:varchar(20);not null;index:ux_payments_gateway_tx,unique,priority:1" json:"gateway"`
	TransactionID string    `gorm:"type:varchar(191);not null;index:ux_payments_gateway_tx,unique,priority:2" json:"transaction_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Status        string    `gorm:"type:varchar(20);not null" json:"status"`
	Metadata      string    `gorm:"type:longtext" json:"metadata,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
