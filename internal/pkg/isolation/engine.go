package isolation

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/mikrotik"
)

// Engine moves services between their package profile and the isolation
// profile when invoices go unpaid past the grace period. All router work and
// status changes funnel through one switchProfile routine; isolation and
// restoration only differ in resolver, expected status and target status.
type Engine struct {
	services repository.ServiceRepository
	invoices repository.InvoiceRepository
	router   mikrotik.RouterControlClient
	settings *models.AppSettings
	now      func() time.Time
}

// NewEngine creates an isolation engine.
func NewEngine(
	services repository.ServiceRepository,
	invoices repository.InvoiceRepository,
	router mikrotik.RouterControlClient,
	settings *models.AppSettings,
) *Engine {
	return &Engine{
		services: services,
		invoices: invoices,
		router:   router,
		settings: settings,
		now:      time.Now,
	}
}

// CheckOverdueServices returns, per active service, the oldest unpaid invoice
// whose due date is past the grace period. Each returned invoice has its
// service (with customer, package and router) preloaded.
func (e *Engine) CheckOverdueServices() ([]models.Invoice, error) {
	today := truncateToDay(e.now())
	cutoff := today.AddDate(0, 0, -e.settings.GetGracePeriodDays())

	invoices, err := e.invoices.GetOldestOverduePerService(cutoff)
	if err != nil {
		return nil, err
	}

	log.Infof("[Isolation] Overdue scan: %d services past grace period", len(invoices))
	return invoices, nil
}

// IsolateService moves a service to the isolation profile. Returns true only
// if the router accepted the profile change and the status transition was
// recorded. Precondition failures return false without side effects.
func (e *Engine) IsolateService(ctx context.Context, service *models.Service, invoice *models.Invoice) bool {
	if service.Status != models.ServiceStatusActive {
		log.Warnf("[Isolation] Service %d not active (status %s), skipping isolation", service.ID, service.Status)
		return false
	}

	now := e.now()
	ok := e.switchProfile(ctx, service,
		FixedProfileResolver{Profile: e.settings.GetIsolationProfile()},
		models.ServiceStatusActive,
		map[string]interface{}{
			"status":      models.ServiceStatusIsolated,
			"isolated_at": now,
		},
	)
	if !ok {
		return false
	}

	service.Status = models.ServiceStatusIsolated
	service.IsolatedAt = &now
	if invoice != nil {
		log.Infof("[Isolation] Service %d isolated over invoice %s", service.ID, invoice.Number)
	} else {
		log.Infof("[Isolation] Service %d isolated", service.ID)
	}
	return true
}

// RestoreService moves a service back to its package profile after payment.
// Returns true only if the router accepted the change and the status
// transition was recorded.
func (e *Engine) RestoreService(ctx context.Context, service *models.Service) bool {
	if service.Status != models.ServiceStatusIsolated {
		log.Warnf("[Isolation] Service %d not isolated (status %s), skipping restoration", service.ID, service.Status)
		return false
	}

	ok := e.switchProfile(ctx, service,
		PackageProfileResolver{Prefix: e.settings.GetProfilePrefix()},
		models.ServiceStatusIsolated,
		map[string]interface{}{
			"status":      models.ServiceStatusActive,
			"isolated_at": nil,
		},
	)
	if !ok {
		return false
	}

	service.Status = models.ServiceStatusActive
	service.IsolatedAt = nil
	log.Infof("[Isolation] Service %d restored", service.ID)
	return true
}

// switchProfile validates preconditions, applies the profile on the router,
// then records the status change with a conditional UPDATE that re-checks the
// expected status. If another worker changed the status in between, the row
// count is zero and the caller gets false; the router profile is already the
// target one, which a retry or the other worker's flow will reconcile.
func (e *Engine) switchProfile(
	ctx context.Context,
	service *models.Service,
	resolver ProfileResolver,
	expectedStatus string,
	updates map[string]interface{},
) bool {
	if !service.IsProvisioned() {
		log.Warnf("[Isolation] Service %d has no router user id, skipping", service.ID)
		return false
	}
	if service.Router == nil {
		log.Warnf("[Isolation] Service %d has no router loaded, skipping", service.ID)
		return false
	}

	profile, err := resolver.Resolve(service)
	if err != nil {
		log.Warnf("[Isolation] Profile resolution for service %d failed: %v", service.ID, err)
		return false
	}

	if err := e.router.UpdateUserProfile(ctx, service.Router, *service.MikrotikUserID, profile); err != nil {
		log.Errorf("[Isolation] Profile change for service %d on %s failed: %v", service.ID, service.Router.Name, err)
		return false
	}

	// Kick the live session so the new profile applies immediately. A failure
	// here is not fatal: the profile applies on the next reconnect anyway.
	if err := e.router.DisconnectActiveSession(ctx, service.Router, service.Username); err != nil {
		log.Warnf("[Isolation] Session disconnect for service %d failed: %v", service.ID, err)
	}

	affected, err := e.services.UpdateStatusIf(service.ID, expectedStatus, updates)
	if err != nil {
		log.Errorf("[Isolation] Status update for service %d failed: %v", service.ID, err)
		return false
	}
	if affected == 0 {
		log.Warnf("[Isolation] Service %d status changed concurrently, update skipped", service.ID)
		return false
	}
	return true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
