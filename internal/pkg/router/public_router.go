package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumenisp/netbill/app/controllers"
)

type PublicRouter struct {
}

// InstallRouter registers the routes that gateways and load balancers reach
// without credentials. Webhooks authenticate by signature, not by API key.
func (h PublicRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/api/v1/webhooks/payment/:gateway", controllers.HandlePaymentWebhook)
}

func NewPublicRouter() *PublicRouter {
	return &PublicRouter{}
}
