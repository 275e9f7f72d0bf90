package repository

import (
	"time"

	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// routerRepository implements the RouterRepository interface
type routerRepository struct {
	db *gorm.DB
}

// NewRouterRepository creates a new router repository instance
func NewRouterRepository(db *gorm.DB) RouterRepository {
	return &routerRepository{db: db}
}

// Create creates a new router record in the database
func (r *routerRepository) Create(router *models.Router) error {
	return r.db.Create(router).Error
}

// GetByID retrieves a router by its ID
func (r *routerRepository) GetByID(id uint) (*models.Router, error) {
	var router models.Router
	err := r.db.First(&router, id).Error
	if err != nil {
		return nil, err
	}
	return &router, nil
}

// GetAll retrieves all routers
func (r *routerRepository) GetAll() ([]models.Router, error) {
	var routers []models.Router
	err := r.db.Order("name ASC").Find(&routers).Error
	return routers, err
}

// Update updates an existing router record
func (r *routerRepository) Update(router *models.Router) error {
	return r.db.Save(router).Error
}

// Delete soft-deletes a router by its ID
func (r *routerRepository) Delete(id uint) error {
	return r.db.Delete(&models.Router{}, id).Error
}

// UpdateStatus records the reachability status of a router
func (r *routerRepository) UpdateStatus(id uint, status string, seenAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if seenAt != nil {
		updates["last_seen_at"] = *seenAt
	}
	return r.db.Model(&models.Router{}).Where("id = ?", id).Updates(updates).Error
}
