package models

import "time"

// PaymentWebhookEvent is the audit log of every inbound gateway notification.
// A row is written before any verification or processing happens, so failed
// and rejected attempts stay inspectable.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Gateway         string     `gorm:"type:varchar(20);not null;index" json:"gateway"`
	TransactionID   string     `gorm:"type:varchar(191);default:'';index" json:"transaction_id"`
	SourceIP        string     `gorm:"type:varchar(45)" json:"source_ip"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
