package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
)

// HandleInstallationList returns installation requests, optionally filtered
// by status.
func HandleInstallationList(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetInstallationRepository()

	if status := c.Query("status"); status != "" {
		installations, err := repo.GetByStatus(status)
		if err != nil {
			return internalError(c, "Failed to load installations")
		}
		return c.JSON(fiber.Map{"installations": installations, "total": len(installations)})
	}

	offset, limit := parsePagination(c)
	installations, err := repo.List(offset, limit)
	if err != nil {
		return internalError(c, "Failed to load installations")
	}

	return c.JSON(fiber.Map{
		"installations": installations,
		"offset":        offset,
		"limit":         limit,
	})
}

// HandleInstallationGet returns one installation request.
func HandleInstallationGet(c *fiber.Ctx) error {
	installation, resp := loadInstallation(c)
	if installation == nil {
		return resp
	}
	return c.JSON(installation)
}

// HandleInstallationCreate opens a new survey request for a customer.
func HandleInstallationCreate(c *fiber.Ctx) error {
	var installation models.Installation
	if err := c.BodyParser(&installation); err != nil {
		return badRequest(c, "Invalid request body")
	}
	installation.ID = 0
	installation.ServiceID = nil
	installation.Status = models.InstallationStatusSurvey

	if err := installation.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	factory := repository.GetGlobalFactory()
	if _, err := factory.GetCustomerRepository().GetByID(installation.CustomerID); err != nil {
		return badRequest(c, "Customer does not exist")
	}
	if _, err := factory.GetPackageRepository().GetByID(installation.PackageID); err != nil {
		return badRequest(c, "Package does not exist")
	}
	if _, err := factory.GetRouterRepository().GetByID(installation.RouterID); err != nil {
		return badRequest(c, "Router does not exist")
	}

	if err := factory.GetInstallationRepository().Create(&installation); err != nil {
		return internalError(c, "Failed to create installation")
	}

	return c.Status(fiber.StatusCreated).JSON(installation)
}

// HandleInstallationSchedule sets the technician visit date.
func HandleInstallationSchedule(c *fiber.Ctx) error {
	installation, resp := loadInstallation(c)
	if installation == nil {
		return resp
	}

	if !installation.IsApprovable() {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Installation is already decided")
	}

	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
		Notes       string    `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ScheduledAt.IsZero() {
		return badRequest(c, "scheduled_at is required")
	}

	installation.Status = models.InstallationStatusScheduled
	installation.ScheduledAt = &req.ScheduledAt
	if req.Notes != "" {
		installation.Notes = req.Notes
	}

	if err := repository.GetGlobalFactory().GetInstallationRepository().Update(installation); err != nil {
		return internalError(c, "Failed to update installation")
	}

	return c.JSON(installation)
}

// HandleInstallationApprove approves the installation and provisions the
// PPPoE service. The plaintext credentials appear in this response only; they
// are not retrievable afterwards. A failed router push still approves the
// installation, the service stays in provisioning_failed for a retry.
func HandleInstallationApprove(c *fiber.Ctx) error {
	if provisioningEngine == nil {
		return internalError(c, "Provisioning engine unavailable")
	}

	installation, resp := loadInstallation(c)
	if installation == nil {
		return resp
	}

	if !installation.IsApprovable() {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Installation is already decided")
	}

	service, creds, provisioned, err := provisioningEngine.ProvisionService(
		c.Context(), installation.CustomerID, installation.PackageID, installation.RouterID)
	if err != nil {
		log.Errorf("[Installation] Provisioning for installation %d failed: %v", installation.ID, err)
		return internalError(c, "Service provisioning failed")
	}

	installation.Status = models.InstallationStatusApproved
	installation.ServiceID = &service.ID
	if err := repository.GetGlobalFactory().GetInstallationRepository().Update(installation); err != nil {
		log.Errorf("[Installation] Approval update for installation %d failed: %v", installation.ID, err)
	}

	response := fiber.Map{
		"success":      true,
		"installation": installation,
		"service":      service,
		"credentials": fiber.Map{
			"username": creds.Username,
			"password": creds.Password,
		},
	}
	if !provisioned {
		response["warning"] = "Router push failed, service queued as provisioning_failed"
	}

	return c.JSON(response)
}

// HandleInstallationReject closes the installation request without a service.
func HandleInstallationReject(c *fiber.Ctx) error {
	installation, resp := loadInstallation(c)
	if installation == nil {
		return resp
	}

	if !installation.IsApprovable() {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Installation is already decided")
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.BodyParser(&req); err == nil && req.Notes != "" {
		installation.Notes = req.Notes
	}

	installation.Status = models.InstallationStatusRejected
	if err := repository.GetGlobalFactory().GetInstallationRepository().Update(installation); err != nil {
		return internalError(c, "Failed to update installation")
	}

	return c.JSON(installation)
}

func loadInstallation(c *fiber.Ctx) (*models.Installation, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, badRequest(c, "Invalid installation id")
	}

	installation, err := repository.GetGlobalFactory().GetInstallationRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(c, "Installation not found")
		}
		return nil, internalError(c, "Failed to load installation")
	}
	return installation, nil
}
