package repository

import (
	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// packageRepository implements the PackageRepository interface
type packageRepository struct {
	db *gorm.DB
}

// NewPackageRepository creates a new package repository instance
func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

// Create creates a new package in the database
func (r *packageRepository) Create(pkg *models.Package) error {
	return r.db.Create(pkg).Error
}

// GetByID retrieves a package by its ID
func (r *packageRepository) GetByID(id uint) (*models.Package, error) {
	var pkg models.Package
	err := r.db.First(&pkg, id).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetAll retrieves all packages
func (r *packageRepository) GetAll() ([]models.Package, error) {
	var pkgs []models.Package
	err := r.db.Order("price ASC").Find(&pkgs).Error
	return pkgs, err
}

// GetActive retrieves packages available for new subscriptions
func (r *packageRepository) GetActive() ([]models.Package, error) {
	var pkgs []models.Package
	err := r.db.Where("is_active = ?", true).Order("price ASC").Find(&pkgs).Error
	return pkgs, err
}

// Update updates an existing package in the database
func (r *packageRepository) Update(pkg *models.Package) error {
	return r.db.Save(pkg).Error
}

// Delete soft-deletes a package by its ID
func (r *packageRepository) Delete(id uint) error {
	return r.db.Delete(&models.Package{}, id).Error
}
