package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lumenisp/netbill/internal/pkg/payment"
	"github.com/lumenisp/netbill/internal/pkg/paymentgateway"
	"github.com/lumenisp/netbill/internal/pkg/statistics"
)

var (
	webhookRegistry  *paymentgateway.Registry
	webhookProcessor *payment.Processor
)

// InitializeWebhookController wires the gateway registry and webhook processor.
func InitializeWebhookController(registry *paymentgateway.Registry, processor *payment.Processor) {
	webhookRegistry = registry
	webhookProcessor = processor
}

// HandlePaymentWebhook receives one gateway notification. The gateway is
// selected by path segment; unknown gateways are rejected before any body
// parsing.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	if webhookRegistry == nil || webhookProcessor == nil {
		log.Error("[Webhook] Controller not initialized")
		return internalError(c, "Webhook processing unavailable")
	}

	gateway := c.Params("gateway")
	adapter, ok := webhookRegistry.Get(gateway)
	if !ok {
		return notFound(c, "Unknown payment gateway")
	}

	req := paymentgateway.WebhookRequest{
		Body:   c.Body(),
		Header: func(key string) string { return c.Get(key) },
	}

	result := webhookProcessor.Process(adapter, req, GetClientIP(c))
	if result.Status == fiber.StatusOK && result.Message == "payment applied" {
		statistics.RecordPaymentReceived()
	}

	return c.Status(result.Status).JSON(fiber.Map{
		"success": result.Status == fiber.StatusOK,
		"message": result.Message,
	})
}
