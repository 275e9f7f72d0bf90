package repository

import (
	"time"

	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// serviceRepository implements the ServiceRepository interface
type serviceRepository struct {
	db *gorm.DB
}

// NewServiceRepository creates a new service repository instance
func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

// Create creates a new service in the database
func (r *serviceRepository) Create(service *models.Service) error {
	return r.db.Create(service).Error
}

// GetByID retrieves a service with its customer, package and router preloaded
func (r *serviceRepository) GetByID(id uint) (*models.Service, error) {
	var service models.Service
	err := r.db.Preload("Customer").Preload("Package").Preload("Router").
		First(&service, id).Error
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// GetByUsername retrieves a service by its PPPoE username
func (r *serviceRepository) GetByUsername(username string) (*models.Service, error) {
	var service models.Service
	err := r.db.Where("username = ?", username).First(&service).Error
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// GetDueForBilling returns active services whose expiry date is on or before
// the given day, with the relations billing needs preloaded.
func (r *serviceRepository) GetDueForBilling(today time.Time) ([]models.Service, error) {
	var services []models.Service
	day := today.Format("2006-01-02")
	err := r.db.Preload("Customer").Preload("Package").
		Where("status = ? AND expiry_date <= ?", models.ServiceStatusActive, day).
		Order("expiry_date ASC").
		Find(&services).Error
	return services, err
}

// Update updates an existing service in the database
func (r *serviceRepository) Update(service *models.Service) error {
	return r.db.Save(service).Error
}

// UpdateStatusIf applies updates only while the row still has the expected
// status. The returned row count tells the caller whether it won the race.
func (r *serviceRepository) UpdateStatusIf(id uint, expectedStatus string, updates map[string]interface{}) (int64, error) {
	res := r.db.Model(&models.Service{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// UsernameExists reports whether a PPPoE username is already taken
func (r *serviceRepository) UsernameExists(username string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Service{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// List retrieves services with pagination and relations preloaded
func (r *serviceRepository) List(offset, limit int) ([]models.Service, error) {
	var services []models.Service
	err := r.db.Preload("Customer").Preload("Package").Preload("Router").
		Offset(offset).Limit(limit).Order("created_at DESC").
		Find(&services).Error
	return services, err
}

// CountByStatus returns the number of services in the given status
func (r *serviceRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Service{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
