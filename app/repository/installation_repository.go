package repository

import (
	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// installationRepository implements the InstallationRepository interface
type installationRepository struct {
	db *gorm.DB
}

// NewInstallationRepository creates a new installation repository instance
func NewInstallationRepository(db *gorm.DB) InstallationRepository {
	return &installationRepository{db: db}
}

// Create creates a new installation record
func (r *installationRepository) Create(installation *models.Installation) error {
	return r.db.Create(installation).Error
}

// GetByID retrieves an installation with its relations preloaded
func (r *installationRepository) GetByID(id uint) (*models.Installation, error) {
	var installation models.Installation
	err := r.db.Preload("Customer").Preload("Package").Preload("Router").
		First(&installation, id).Error
	if err != nil {
		return nil, err
	}
	return &installation, nil
}

// GetByStatus retrieves installations in the given workflow state
func (r *installationRepository) GetByStatus(status string) ([]models.Installation, error) {
	var installations []models.Installation
	err := r.db.Preload("Customer").Where("status = ?", status).
		Order("created_at ASC").Find(&installations).Error
	return installations, err
}

// Update updates an existing installation record
func (r *installationRepository) Update(installation *models.Installation) error {
	return r.db.Save(installation).Error
}

// List retrieves installations with pagination
func (r *installationRepository) List(offset, limit int) ([]models.Installation, error) {
	var installations []models.Installation
	err := r.db.Preload("Customer").Preload("Package").
		Offset(offset).Limit(limit).Order("created_at DESC").
		Find(&installations).Error
	return installations, err
}
