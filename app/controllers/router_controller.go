package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/mikrotik"
	"github.com/lumenisp/netbill/internal/pkg/security"
)

var routerControlClient mikrotik.RouterControlClient

// InitializeRouterController wires the RouterOS client used by the
// test-connection endpoint.
func InitializeRouterController(client mikrotik.RouterControlClient) {
	routerControlClient = client
}

// routerRequest is the inbound shape for create/update. The API password
// travels in plaintext over the admin API and is stored encrypted.
type routerRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRouterList returns all Mikrotik device records.
func HandleRouterList(c *fiber.Ctx) error {
	routers, err := repository.GetGlobalFactory().GetRouterRepository().GetAll()
	if err != nil {
		return internalError(c, "Failed to load routers")
	}

	return c.JSON(fiber.Map{"routers": routers, "total": len(routers)})
}

// HandleRouterGet returns one router record by id.
func HandleRouterGet(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid router id")
	}

	router, err := repository.GetGlobalFactory().GetRouterRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Router not found")
		}
		return internalError(c, "Failed to load router")
	}

	return c.JSON(router)
}

// HandleRouterCreate registers a Mikrotik device. The API password is
// encrypted before the record is stored.
func HandleRouterCreate(c *fiber.Ctx) error {
	var req routerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Password == "" {
		return badRequest(c, "Password is required")
	}

	encrypted, err := security.EncryptString(req.Password)
	if err != nil {
		return internalError(c, "Password encryption failed")
	}

	router := models.Router{
		Name:        req.Name,
		Host:        req.Host,
		Port:        req.Port,
		Username:    req.Username,
		PasswordEnc: encrypted,
		Status:      models.RouterStatusUnknown,
	}
	if router.Port == 0 {
		router.Port = 8728
	}

	if err := router.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := repository.GetGlobalFactory().GetRouterRepository().Create(&router); err != nil {
		return internalError(c, "Failed to create router")
	}

	return c.Status(fiber.StatusCreated).JSON(router)
}

// HandleRouterUpdate edits a router record. An empty password keeps the
// stored one.
func HandleRouterUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid router id")
	}

	repo := repository.GetGlobalFactory().GetRouterRepository()
	router, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Router not found")
		}
		return internalError(c, "Failed to load router")
	}

	var req routerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if req.Name != "" {
		router.Name = req.Name
	}
	if req.Host != "" {
		router.Host = req.Host
	}
	if req.Port != 0 {
		router.Port = req.Port
	}
	if req.Username != "" {
		router.Username = req.Username
	}
	if req.Password != "" {
		encrypted, err := security.EncryptString(req.Password)
		if err != nil {
			return internalError(c, "Password encryption failed")
		}
		router.PasswordEnc = encrypted
	}

	if err := router.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := repo.Update(router); err != nil {
		return internalError(c, "Failed to update router")
	}

	return c.JSON(router)
}

// HandleRouterDelete soft-deletes a router record.
func HandleRouterDelete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid router id")
	}

	if err := repository.GetGlobalFactory().GetRouterRepository().Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Router not found")
		}
		return internalError(c, "Failed to delete router")
	}

	return c.JSON(fiber.Map{"success": true})
}

// HandleRouterTest dials the router API and updates the stored online status.
func HandleRouterTest(c *fiber.Ctx) error {
	if routerControlClient == nil {
		return internalError(c, "Router client unavailable")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid router id")
	}

	repo := repository.GetGlobalFactory().GetRouterRepository()
	router, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Router not found")
		}
		return internalError(c, "Failed to load router")
	}

	testErr := routerControlClient.TestConnection(c.Context(), router)

	now := time.Now()
	status := models.RouterStatusOnline
	var seenAt *time.Time = &now
	if testErr != nil {
		status = models.RouterStatusOffline
		seenAt = nil
	}
	if err := repo.UpdateStatus(router.ID, status, seenAt); err != nil {
		return internalError(c, "Failed to record router status")
	}

	if testErr != nil {
		return c.JSON(fiber.Map{"success": false, "status": status, "message": testErr.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "status": status})
}
