package repository

import (
	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook audit log repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Create writes the audit row for an inbound webhook
func (r *webhookEventRepository) Create(event *models.PaymentWebhookEvent) error {
	return r.db.Create(event).Error
}

// Update records the processing outcome on an existing audit row
func (r *webhookEventRepository) Update(event *models.PaymentWebhookEvent) error {
	return r.db.Save(event).Error
}

// ListRecent retrieves the newest audit rows for admin inspection
func (r *webhookEventRepository) ListRecent(limit int) ([]models.PaymentWebhookEvent, error) {
	var events []models.PaymentWebhookEvent
	err := r.db.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}
