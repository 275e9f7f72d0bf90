package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ServiceStatusPending            = "pending"
	ServiceStatusActive             = "active"
	ServiceStatusIsolated           = "isolated"
	ServiceStatusSuspended          = "suspended"
	ServiceStatusTerminated         = "terminated"
	ServiceStatusProvisioningFailed = "provisioning_failed"
)

// Service is one provisioned PPPoE connection for a customer. ExpiryDate
// drives both invoice generation and overdue isolation. The PPPoE password is
// stored encrypted and is only recoverable through the security package.
//
// Invariants maintained by the engines:
//   - IsolatedAt is non-nil iff Status == isolated
//   - MikrotikUserID is non-nil iff provisioning succeeded (active/isolated)
//   - a Service is never hard-deleted while financial history exists; it is
//     terminated instead
type Service struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CustomerID     uint           `gorm:"not null;index" json:"customer_id"`
	Customer       *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	PackageID      uint           `gorm:"not null;index" json:"package_id"`
	Package        *Package       `gorm:"foreignKey:PackageID" json:"package,omitempty"`
	RouterID       uint           `gorm:"not null;index" json:"router_id"`
	Router         *Router        `gorm:"foreignKey:RouterID" json:"router,omitempty"`
	Username       string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"`
	PasswordEnc    string         `gorm:"type:text;not null" json:"-"`
	MikrotikUserID *string        `gorm:"type:varchar(32);default:null" json:"mikrotik_user_id,omitempty"`
	Status         string         `gorm:"type:varchar(32);default:'pending';index" json:"status"`
	ActivatedAt    *time.Time     `gorm:"type:timestamp;default:null" json:"activated_at,omitempty"`
	ExpiryDate     time.Time      `gorm:"type:date;not null;index" json:"expiry_date"`
	IsolatedAt     *time.Time     `gorm:"type:timestamp;default:null" json:"isolated_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsProvisioned reports whether the service has a router-assigned user id.
func (s *Service) IsProvisioned() bool {
	return s.MikrotikUserID != nil && *s.MikrotikUserID != ""
}

// IsIsolated reports whether the service is currently isolated.
func (s *Service) IsIsolated() bool {
	return s.Status == ServiceStatusIsolated
}

// IsBillable reports whether the service should receive invoices.
func (s *Service) IsBillable() bool {
	return s.Status == ServiceStatusActive
}
