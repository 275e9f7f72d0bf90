package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
)

// HandlePackageList returns all internet plans. active=true limits the list
// to plans still offered to new subscribers.
func HandlePackageList(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetPackageRepository()

	var (
		packages []models.Package
		err      error
	)
	if c.QueryBool("active", false) {
		packages, err = repo.GetActive()
	} else {
		packages, err = repo.GetAll()
	}
	if err != nil {
		return internalError(c, "Failed to load packages")
	}

	return c.JSON(fiber.Map{"packages": packages, "total": len(packages)})
}

// HandlePackageGet returns one plan by id.
func HandlePackageGet(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid package id")
	}

	pkg, err := repository.GetGlobalFactory().GetPackageRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Package not found")
		}
		return internalError(c, "Failed to load package")
	}

	return c.JSON(pkg)
}

// HandlePackageCreate adds a new internet plan.
func HandlePackageCreate(c *fiber.Ctx) error {
	var pkg models.Package
	if err := c.BodyParser(&pkg); err != nil {
		return badRequest(c, "Invalid request body")
	}
	pkg.ID = 0

	if err := pkg.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := repository.GetGlobalFactory().GetPackageRepository().Create(&pkg); err != nil {
		return internalError(c, "Failed to create package")
	}

	return c.Status(fiber.StatusCreated).JSON(pkg)
}

// HandlePackageUpdate edits a plan. Already-issued invoices keep the price
// they were generated with.
func HandlePackageUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid package id")
	}

	repo := repository.GetGlobalFactory().GetPackageRepository()
	pkg, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Package not found")
		}
		return internalError(c, "Failed to load package")
	}

	if err := c.BodyParser(pkg); err != nil {
		return badRequest(c, "Invalid request body")
	}
	pkg.ID = id

	if err := pkg.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := repo.Update(pkg); err != nil {
		return internalError(c, "Failed to update package")
	}

	return c.JSON(pkg)
}

// HandlePackageDelete soft-deletes a plan.
func HandlePackageDelete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid package id")
	}

	if err := repository.GetGlobalFactory().GetPackageRepository().Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Package not found")
		}
		return internalError(c, "Failed to delete package")
	}

	return c.JSON(fiber.Map{"success": true})
}
