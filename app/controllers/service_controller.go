package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/isolation"
	"github.com/lumenisp/netbill/internal/pkg/jobqueue"
	"github.com/lumenisp/netbill/internal/pkg/provisioning"
)

var (
	isolationEngine    *isolation.Engine
	provisioningEngine *provisioning.Engine
)

// InitializeServiceController wires the engines used by the lifecycle
// endpoints.
func InitializeServiceController(iso *isolation.Engine, prov *provisioning.Engine) {
	isolationEngine = iso
	provisioningEngine = prov
}

// HandleServiceList returns services, paginated.
func HandleServiceList(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)

	services, err := repository.GetGlobalFactory().GetServiceRepository().List(offset, limit)
	if err != nil {
		return internalError(c, "Failed to load services")
	}

	return c.JSON(fiber.Map{
		"services": services,
		"offset":   offset,
		"limit":    limit,
	})
}

// HandleServiceGet returns one service with its relations.
func HandleServiceGet(c *fiber.Ctx) error {
	service, resp := loadService(c)
	if service == nil {
		return resp
	}
	return c.JSON(service)
}

// HandleServiceInvoices returns the billing history of one service.
func HandleServiceInvoices(c *fiber.Ctx) error {
	service, resp := loadService(c)
	if service == nil {
		return resp
	}

	invoices, err := repository.GetGlobalFactory().GetInvoiceRepository().ListByService(service.ID)
	if err != nil {
		return internalError(c, "Failed to load invoices")
	}

	return c.JSON(fiber.Map{"invoices": invoices, "total": len(invoices)})
}

// HandleServiceIsolate manually moves a service to the isolation profile,
// outside the overdue schedule.
func HandleServiceIsolate(c *fiber.Ctx) error {
	if isolationEngine == nil {
		return internalError(c, "Isolation engine unavailable")
	}

	service, resp := loadService(c)
	if service == nil {
		return resp
	}

	if !isolationEngine.IsolateService(c.Context(), service, nil) {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Service could not be isolated")
	}

	return c.JSON(fiber.Map{"success": true, "status": service.Status})
}

// HandleServiceRestore manually moves an isolated service back to its
// package profile.
func HandleServiceRestore(c *fiber.Ctx) error {
	if isolationEngine == nil {
		return internalError(c, "Isolation engine unavailable")
	}

	service, resp := loadService(c)
	if service == nil {
		return resp
	}

	if !isolationEngine.RestoreService(c.Context(), service) {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Service could not be restored")
	}

	return c.JSON(fiber.Map{"success": true, "status": service.Status})
}

// HandleServiceRetryProvision queues a router push retry for a service whose
// provisioning failed.
func HandleServiceRetryProvision(c *fiber.Ctx) error {
	service, resp := loadService(c)
	if service == nil {
		return resp
	}

	if service.Status != models.ServiceStatusProvisioningFailed && service.Status != models.ServiceStatusPending {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Service is not awaiting provisioning")
	}

	if err := jobqueue.GetManager().EnqueueProvisionRetry(service.ID); err != nil {
		return internalError(c, "Failed to queue provisioning retry")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "message": "Provisioning retry queued"})
}

// HandleServiceTerminate removes the router user and marks the service
// terminated. The record stays because invoices reference it.
func HandleServiceTerminate(c *fiber.Ctx) error {
	if provisioningEngine == nil {
		return internalError(c, "Provisioning engine unavailable")
	}

	service, resp := loadService(c)
	if service == nil {
		return resp
	}

	if service.Status == models.ServiceStatusTerminated {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Service is already terminated")
	}

	if err := provisioningEngine.TerminateService(c.Context(), service); err != nil {
		return internalError(c, "Termination failed")
	}

	return c.JSON(fiber.Map{"success": true, "status": service.Status})
}

func loadService(c *fiber.Ctx) (*models.Service, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, badRequest(c, "Invalid service id")
	}

	service, err := repository.GetGlobalFactory().GetServiceRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(c, "Service not found")
		}
		return nil, internalError(c, "Failed to load service")
	}
	return service, nil
}
