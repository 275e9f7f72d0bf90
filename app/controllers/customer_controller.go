package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
)

// HandleCustomerList returns customers, paginated. A q= parameter switches to
// name/phone search.
func HandleCustomerList(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetCustomerRepository()

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		customers, err := repo.Search(query)
		if err != nil {
			return internalError(c, "Customer search failed")
		}
		return c.JSON(fiber.Map{"customers": customers, "total": len(customers)})
	}

	offset, limit := parsePagination(c)
	customers, err := repo.List(offset, limit)
	if err != nil {
		return internalError(c, "Failed to load customers")
	}

	total, err := repo.Count()
	if err != nil {
		return internalError(c, "Failed to count customers")
	}

	return c.JSON(fiber.Map{
		"customers": customers,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

// HandleCustomerGet returns one customer by id.
func HandleCustomerGet(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	customer, err := repository.GetGlobalFactory().GetCustomerRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Customer not found")
		}
		return internalError(c, "Failed to load customer")
	}

	return c.JSON(customer)
}

// HandleCustomerCreate registers a new subscriber account.
func HandleCustomerCreate(c *fiber.Ctx) error {
	var customer models.Customer
	if err := c.BodyParser(&customer); err != nil {
		return badRequest(c, "Invalid request body")
	}
	customer.ID = 0
	if customer.Status == "" {
		customer.Status = models.CustomerStatusActive
	}

	if err := customer.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := repository.GetGlobalFactory().GetCustomerRepository().Create(&customer); err != nil {
		return internalError(c, "Failed to create customer")
	}

	return c.Status(fiber.StatusCreated).JSON(customer)
}

// HandleCustomerUpdate updates an existing subscriber account.
func HandleCustomerUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	repo := repository.GetGlobalFactory().GetCustomerRepository()
	customer, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Customer not found")
		}
		return internalError(c, "Failed to load customer")
	}

	if err := c.BodyParser(customer); err != nil {
		return badRequest(c, "Invalid request body")
	}
	customer.ID = id

	if err := customer.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := repo.Update(customer); err != nil {
		return internalError(c, "Failed to update customer")
	}

	return c.JSON(customer)
}

// HandleCustomerDelete soft-deletes a customer. Services and invoices keep
// their rows; financial history is never removed.
func HandleCustomerDelete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer id")
	}

	if err := repository.GetGlobalFactory().GetCustomerRepository().Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Customer not found")
		}
		return internalError(c, "Failed to delete customer")
	}

	return c.JSON(fiber.Map{"success": true})
}
