package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/isolation"
	"github.com/lumenisp/netbill/internal/pkg/notification"
	"github.com/lumenisp/netbill/internal/pkg/provisioning"
)

// Dependencies are the engines the job processors dispatch to.
type Dependencies struct {
	Services     repository.ServiceRepository
	Isolation    *isolation.Engine
	Provisioning *provisioning.Engine
	Notifier     notification.Sender
}

// processIsolationJob moves one overdue service to the isolation profile. A
// service that is no longer active (paid in the meantime, terminated, or
// isolated by another worker) completes as a no-op instead of retrying.
func (q *Queue) processIsolationJob(ctx context.Context, job *Job) error {
	payload, err := IsolationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid isolation payload: %w", err)
	}

	service, err := q.deps.Services.GetByID(payload.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[JobQueue] Isolation job %s: service %d no longer exists", job.ID, payload.ServiceID)
			return nil
		}
		return fmt.Errorf("service %d load failed: %w", payload.ServiceID, err)
	}

	if service.Status != models.ServiceStatusActive {
		log.Infof("[JobQueue] Isolation job %s: service %d is %s, nothing to do", job.ID, service.ID, service.Status)
		return nil
	}

	invoice := &models.Invoice{ID: payload.InvoiceID, Number: payload.InvoiceNumber}
	if !q.deps.Isolation.IsolateService(ctx, service, invoice) {
		return fmt.Errorf("isolation of service %d failed", service.ID)
	}
	return nil
}

// processRestorationJob moves one paid-up service back to its package
// profile. A service that is no longer isolated completes as a no-op.
func (q *Queue) processRestorationJob(ctx context.Context, job *Job) error {
	payload, err := RestorationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid restoration payload: %w", err)
	}

	service, err := q.deps.Services.GetByID(payload.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[JobQueue] Restoration job %s: service %d no longer exists", job.ID, payload.ServiceID)
			return nil
		}
		return fmt.Errorf("service %d load failed: %w", payload.ServiceID, err)
	}

	if service.Status != models.ServiceStatusIsolated {
		log.Infof("[JobQueue] Restoration job %s: service %d is %s, nothing to do", job.ID, service.ID, service.Status)
		return nil
	}

	if !q.deps.Isolation.RestoreService(ctx, service) {
		return fmt.Errorf("restoration of service %d failed", service.ID)
	}
	return nil
}

// processNotificationJob delivers one subscriber message.
func (q *Queue) processNotificationJob(ctx context.Context, job *Job) error {
	payload, err := NotificationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}

	if payload.Recipient == "" {
		log.Warnf("[JobQueue] Notification job %s has no recipient, dropping", job.ID)
		return nil
	}

	return q.deps.Notifier.Send(ctx, payload.Channel, payload.Recipient, payload.Subject, payload.Body)
}

// processProvisionJob re-pushes a pending or provisioning_failed service to
// its router. An already-active service completes as a no-op.
func (q *Queue) processProvisionJob(ctx context.Context, job *Job) error {
	payload, err := ProvisionJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid provision payload: %w", err)
	}

	service, err := q.deps.Services.GetByID(payload.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[JobQueue] Provision job %s: service %d no longer exists", job.ID, payload.ServiceID)
			return nil
		}
		return fmt.Errorf("service %d load failed: %w", payload.ServiceID, err)
	}

	if service.Status == models.ServiceStatusActive {
		log.Infof("[JobQueue] Provision job %s: service %d already active", job.ID, service.ID)
		return nil
	}

	if !q.deps.Provisioning.RetryProvisioning(ctx, service) {
		return fmt.Errorf("provisioning of service %d failed", service.ID)
	}
	return nil
}
