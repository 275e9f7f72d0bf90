package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Package is a sellable internet plan. Price is in IDR (no decimals).
// Invoices copy the price at generation time, so editing a package never
// retroactively changes issued invoices.
type Package struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"name" validate:"required,min=2,max=100"`
	Price           int64          `gorm:"not null" json:"price" validate:"required,gt=0"`
	Speed           string         `gorm:"type:varchar(32)" json:"speed" validate:"max=32"`
	MikrotikProfile string         `gorm:"type:varchar(100);default:null" json:"mikrotik_profile" validate:"omitempty,max=100"`
	IsActive        bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Package) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// ProfileName resolves the PPPoE profile for this package: the explicit
// mikrotik_profile override wins, otherwise the package name is prefixed and
// normalized (spaces become underscores).
func (p *Package) ProfileName(prefix string) string {
	if p.MikrotikProfile != "" {
		return p.MikrotikProfile
	}
	return prefix + strings.ReplaceAll(p.Name, " ", "_")
}
