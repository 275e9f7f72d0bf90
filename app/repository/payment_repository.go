package repository

import (
	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create creates a new payment record. A duplicate (gateway, transaction_id)
// pair fails on the unique index.
func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByGatewayAndTransactionID retrieves an applied payment by its gateway key
func (r *paymentRepository) GetByGatewayAndTransactionID(gateway, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("gateway = ? AND transaction_id = ?", gateway, transactionID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ExistsByGatewayAndTransactionID reports whether a gateway transaction was
// already applied
func (r *paymentRepository) ExistsByGatewayAndTransactionID(gateway, transactionID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).
		Where("gateway = ? AND transaction_id = ?", gateway, transactionID).
		Count(&count).Error
	return count > 0, err
}

// ListByInvoice retrieves all payments applied to an invoice
func (r *paymentRepository) ListByInvoice(invoiceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("invoice_id = ?", invoiceID).Order("created_at ASC").Find(&payments).Error
	return payments, err
}
