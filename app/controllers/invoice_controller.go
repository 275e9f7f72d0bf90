package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/paymentgateway"
)

// HandleInvoiceList returns invoices, paginated.
func HandleInvoiceList(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)

	invoices, err := repository.GetGlobalFactory().GetInvoiceRepository().List(offset, limit)
	if err != nil {
		return internalError(c, "Failed to load invoices")
	}

	return c.JSON(fiber.Map{
		"invoices": invoices,
		"offset":   offset,
		"limit":    limit,
	})
}

// HandleInvoiceGet returns one invoice with its applied payments.
func HandleInvoiceGet(c *fiber.Ctx) error {
	invoice, resp := loadInvoice(c)
	if invoice == nil {
		return resp
	}

	payments, err := repository.GetGlobalFactory().GetPaymentRepository().ListByInvoice(invoice.ID)
	if err != nil {
		return internalError(c, "Failed to load payments")
	}

	return c.JSON(fiber.Map{"invoice": invoice, "payments": payments})
}

// HandleInvoicePaymentLink creates (or recreates) a payment link for an
// unpaid invoice through the default gateway.
func HandleInvoicePaymentLink(c *fiber.Ctx) error {
	if webhookRegistry == nil {
		return internalError(c, "Payment gateways unavailable")
	}

	invoice, resp := loadInvoice(c)
	if invoice == nil {
		return resp
	}

	if invoice.IsPaid() {
		return errorResponse(c, fiber.StatusConflict, "conflict", "Invoice is already paid")
	}

	var customer *models.Customer
	if invoice.Service != nil {
		customer = invoice.Service.Customer
	}
	if customer == nil {
		return internalError(c, "Invoice has no customer loaded")
	}

	var adapter paymentgateway.Adapter = webhookRegistry.Default()
	if name := c.Query("gateway"); name != "" {
		named, ok := webhookRegistry.Get(name)
		if !ok {
			return badRequest(c, "Unknown payment gateway")
		}
		adapter = named
	}

	link, err := adapter.CreatePaymentLink(invoice, customer)
	if err != nil {
		return errorResponse(c, fiber.StatusBadGateway, "gateway_error", "Payment link creation failed")
	}

	invoice.PaymentLink = link
	if err := repository.GetGlobalFactory().GetInvoiceRepository().Update(invoice); err != nil {
		return internalError(c, "Failed to store payment link")
	}

	return c.JSON(fiber.Map{"payment_link": link, "gateway": adapter.Name()})
}

func loadInvoice(c *fiber.Ctx) (*models.Invoice, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, badRequest(c, "Invalid invoice id")
	}

	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(c, "Invoice not found")
		}
		return nil, internalError(c, "Failed to load invoice")
	}
	return invoice, nil
}
