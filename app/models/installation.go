package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	InstallationStatusSurvey    = "survey"
	InstallationStatusScheduled = "scheduled"
	InstallationStatusApproved  = "approved"
	InstallationStatusRejected  = "rejected"
)

// Installation tracks the survey/installation workflow for a new subscriber.
// Approving an installation is what triggers service provisioning.
type Installation struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CustomerID  uint           `gorm:"not null;index" json:"customer_id"`
	Customer    *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	PackageID   uint           `gorm:"not null" json:"package_id"`
	Package     *Package       `gorm:"foreignKey:PackageID" json:"package,omitempty"`
	RouterID    uint           `gorm:"not null" json:"router_id"`
	Router      *Router        `gorm:"foreignKey:RouterID" json:"router,omitempty"`
	ServiceID   *uint          `gorm:"default:null" json:"service_id,omitempty"`
	Status      string         `gorm:"type:varchar(20);default:'survey';index" json:"status" validate:"oneof=survey scheduled approved rejected"`
	ScheduledAt *time.Time     `gorm:"type:timestamp;default:null" json:"scheduled_at,omitempty"`
	Notes       string         `gorm:"type:text" json:"notes" validate:"max=2000"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (i *Installation) Validate() error {
	v := validator.New()

	return v.Struct(i)
}

// IsApprovable reports whether the installation can still be approved.
func (i *Installation) IsApprovable() bool {
	return i.Status == InstallationStatusSurvey || i.Status == InstallationStatusScheduled
}
