package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	RouterStatusOnline  = "online"
	RouterStatusOffline = "offline"
	RouterStatusUnknown = "unknown"
)

// Router is a Mikrotik device reachable over the RouterOS API. The API
// password is stored AES-GCM encrypted; decryption happens only inside the
// router client right before dialing.
type Router struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"name" validate:"required,min=2,max=100"`
	Host        string         `gorm:"type:varchar(255);not null" json:"host" validate:"required,max=255"`
	Port        int            `gorm:"default:8728" json:"port" validate:"gte=1,lte=65535"`
	Username    string         `gorm:"type:varchar(100);not null" json:"username" validate:"required,max=100"`
	PasswordEnc string         `gorm:"type:text;not null" json:"-"`
	Status      string         `gorm:"type:varchar(20);default:'unknown';index" json:"status" validate:"oneof=online offline unknown"`
	LastSeenAt  *time.Time     `gorm:"type:timestamp;default:null" json:"last_seen_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Router) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// Address returns the host:port pair used to dial the RouterOS API.
func (r *Router) Address() string {
	port := r.Port
	if port == 0 {
		port = 8728
	}
	return fmt.Sprintf("%s:%d", r.Host, port)
}
