package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/mikrotik"
	"github.com/lumenisp/netbill/internal/pkg/security"
)

// Engine creates and tears down PPPoE services. The database record is the
// source of truth; router state follows it. A service whose router push
// failed keeps its record in provisioning_failed so the push can be retried
// without regenerating credentials.
type Engine struct {
	db       *gorm.DB
	services repository.ServiceRepository
	router   mikrotik.RouterControlClient
	settings *models.AppSettings
	now      func() time.Time
}

// NewEngine creates a provisioning engine.
func NewEngine(
	db *gorm.DB,
	services repository.ServiceRepository,
	router mikrotik.RouterControlClient,
	settings *models.AppSettings,
) *Engine {
	return &Engine{
		db:       db,
		services: services,
		router:   router,
		settings: settings,
		now:      time.Now,
	}
}

// CreateService inserts the service record with fresh credentials. Status is
// pending until the router push succeeds. The plaintext password is returned
// exactly once; only the encrypted form is stored.
func (e *Engine) CreateService(customerID, packageID, routerID uint) (*models.Service, *Credentials, error) {
	now := e.now()

	creds, err := GenerateCredentials(now, e.services.UsernameExists)
	if err != nil {
		return nil, nil, err
	}

	encrypted, err := security.EncryptString(creds.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("password encryption failed: %w", err)
	}

	service := &models.Service{
		CustomerID:  customerID,
		PackageID:   packageID,
		RouterID:    routerID,
		Username:    creds.Username,
		PasswordEnc: encrypted,
		Status:      models.ServiceStatusPending,
		ExpiryDate:  truncateToDay(now).AddDate(0, 0, e.settings.GetBillingCycleDays()),
	}

	if err := e.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(service).Error
	}); err != nil {
		return nil, nil, fmt.Errorf("service insert failed: %w", err)
	}

	log.Infof("[Provisioning] Service %d created for customer %d (user %s)", service.ID, customerID, creds.Username)
	return service, creds, nil
}

// ProvisionToRouter pushes an existing service's PPPoE secret to its router.
// Returns true on success. On failure the service is marked
// provisioning_failed and kept for a retry.
func (e *Engine) ProvisionToRouter(ctx context.Context, service *models.Service) bool {
	if service.Router == nil || service.Package == nil {
		log.Warnf("[Provisioning] Service %d missing router or package, cannot provision", service.ID)
		return false
	}

	password, err := security.DecryptString(service.PasswordEnc)
	if err != nil {
		log.Errorf("[Provisioning] Password decryption for service %d failed: %v", service.ID, err)
		e.markFailed(service)
		return false
	}

	profile := service.Package.ProfileName(e.settings.GetProfilePrefix())

	userID, err := e.router.CreatePPPoEUser(ctx, service.Router, service.Username, password, profile)
	if err != nil {
		log.Errorf("[Provisioning] Router push for service %d failed: %v", service.ID, err)
		e.markFailed(service)
		return false
	}

	now := e.now()
	service.MikrotikUserID = &userID
	service.Status = models.ServiceStatusActive
	service.ActivatedAt = &now
	if err := e.services.Update(service); err != nil {
		log.Errorf("[Provisioning] Activation update for service %d failed: %v", service.ID, err)
		return false
	}

	log.Infof("[Provisioning] Service %d active on %s (router id %s, profile %s)",
		service.ID, service.Router.Name, userID, profile)
	return true
}

// ProvisionService creates the record and pushes it to the router in one go.
// The ok flag reports router success; the service record exists either way.
func (e *Engine) ProvisionService(ctx context.Context, customerID, packageID, routerID uint) (*models.Service, *Credentials, bool, error) {
	service, creds, err := e.CreateService(customerID, packageID, routerID)
	if err != nil {
		return nil, nil, false, err
	}

	// reload with relations for the router push
	loaded, err := e.services.GetByID(service.ID)
	if err != nil {
		return service, creds, false, err
	}

	ok := e.ProvisionToRouter(ctx, loaded)
	return loaded, creds, ok, nil
}

// RetryProvisioning re-pushes a provisioning_failed service to its router.
func (e *Engine) RetryProvisioning(ctx context.Context, service *models.Service) bool {
	if service.Status != models.ServiceStatusProvisioningFailed && service.Status != models.ServiceStatusPending {
		log.Warnf("[Provisioning] Service %d status %s is not retryable", service.ID, service.Status)
		return false
	}
	return e.ProvisionToRouter(ctx, service)
}

// TerminateService removes the router user (best effort) and marks the
// service terminated. The record is kept because invoices reference it.
func (e *Engine) TerminateService(ctx context.Context, service *models.Service) error {
	if service.IsProvisioned() && service.Router != nil {
		if err := e.router.DeleteUser(ctx, service.Router, *service.MikrotikUserID); err != nil {
			log.Warnf("[Provisioning] Router user removal for service %d failed: %v", service.ID, err)
		} else if err := e.router.DisconnectActiveSession(ctx, service.Router, service.Username); err != nil {
			log.Warnf("[Provisioning] Session disconnect for service %d failed: %v", service.ID, err)
		}
	}

	service.Status = models.ServiceStatusTerminated
	service.MikrotikUserID = nil
	if err := e.services.Update(service); err != nil {
		return fmt.Errorf("termination update for service %d failed: %w", service.ID, err)
	}

	log.Infof("[Provisioning] Service %d terminated", service.ID)
	return nil
}

func (e *Engine) markFailed(service *models.Service) {
	service.Status = models.ServiceStatusProvisioningFailed
	if err := e.services.Update(service); err != nil {
		log.Errorf("[Provisioning] Failure marker update for service %d failed: %v", service.ID, err)
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
