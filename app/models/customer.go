package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	CustomerStatusActive   = "active"
	CustomerStatusInactive = "inactive"
)

// Customer is a subscriber account. The phone number doubles as the WhatsApp
// recipient for invoice and payment notifications.
type Customer struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	Phone        string         `gorm:"type:varchar(20);index" json:"phone" validate:"required,min=8,max=20"`
	Email        string         `gorm:"type:varchar(200);index" json:"email" validate:"omitempty,email,max=200"`
	Address      string         `gorm:"type:text" json:"address" validate:"max=1000"`
	IDCardNumber string         `gorm:"type:varchar(32);default:null" json:"id_card_number" validate:"omitempty,max=32"`
	Status       string         `gorm:"type:varchar(20);default:'active';index" json:"status" validate:"oneof=active inactive"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Customer) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// IsActive reports whether the customer status is active
func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}
