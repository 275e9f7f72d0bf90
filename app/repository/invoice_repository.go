package repository

import (
	"time"

	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create creates a new invoice in the database
func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// GetByID retrieves an invoice with its service preloaded
func (r *invoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Preload("Service").Preload("Service.Customer").First(&invoice, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByNumber retrieves an invoice by its human-facing number
func (r *invoiceRepository) GetByNumber(number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Preload("Service").Where("number = ?", number).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// HasUnpaidForService reports whether the service has any open invoice
func (r *invoiceRepository) HasUnpaidForService(serviceID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).
		Where("service_id = ? AND status = ?", serviceID, models.InvoiceStatusUnpaid).
		Count(&count).Error
	return count > 0, err
}

// GetOldestOverduePerService returns, per active non-isolated service, its
// single oldest unpaid invoice with a due date before the cutoff. A service
// with several overdue invoices yields exactly one row.
func (r *invoiceRepository) GetOldestOverduePerService(cutoff time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	day := cutoff.Format("2006-01-02")
	err := r.db.Preload("Service").Preload("Service.Customer").Preload("Service.Router").Preload("Service.Package").
		Joins("JOIN services ON services.id = invoices.service_id").
		Where("invoices.status = ?", models.InvoiceStatusUnpaid).
		Where("invoices.due_date < ?", day).
		Where("services.status = ?", models.ServiceStatusActive).
		Where("services.deleted_at IS NULL").
		Where("invoices.id = (SELECT i2.id FROM invoices i2 WHERE i2.service_id = invoices.service_id AND i2.status = ? ORDER BY i2.due_date ASC, i2.id ASC LIMIT 1)", models.InvoiceStatusUnpaid).
		Order("invoices.due_date ASC").
		Find(&invoices).Error
	return invoices, err
}

// Update updates an existing invoice in the database
func (r *invoiceRepository) Update(invoice *models.Invoice) error {
	return r.db.Save(invoice).Error
}

// ListByService retrieves all invoices for a service, newest first
func (r *invoiceRepository) ListByService(serviceID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("service_id = ?", serviceID).Order("invoice_date DESC").Find(&invoices).Error
	return invoices, err
}

// List retrieves invoices with pagination
func (r *invoiceRepository) List(offset, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Preload("Service").Preload("Service.Customer").
		Offset(offset).Limit(limit).Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

// CountByStatus returns the number of invoices in the given status
func (r *invoiceRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// SumPaidBetween sums the amounts of invoices paid in [from, to)
func (r *invoiceRepository) SumPaidBetween(from, to time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&models.Invoice{}).
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.InvoiceStatusPaid, from, to).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
