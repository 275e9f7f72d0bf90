package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/lumenisp/netbill/app/controllers"
	"github.com/lumenisp/netbill/internal/pkg/middleware"
)

type ApiRouter struct {
}

// InstallRouter registers the admin API. Every route is behind the shared
// admin key and a rate limiter.
func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api/v1", limiter.New(), middleware.AdminAPIKeyMiddleware())

	customers := api.Group("/customers")
	customers.Get("/", controllers.HandleCustomerList)
	customers.Post("/", controllers.HandleCustomerCreate)
	customers.Get("/:id", controllers.HandleCustomerGet)
	customers.Put("/:id", controllers.HandleCustomerUpdate)
	customers.Delete("/:id", controllers.HandleCustomerDelete)

	packages := api.Group("/packages")
	packages.Get("/", controllers.HandlePackageList)
	packages.Post("/", controllers.HandlePackageCreate)
	packages.Get("/:id", controllers.HandlePackageGet)
	packages.Put("/:id", controllers.HandlePackageUpdate)
	packages.Delete("/:id", controllers.HandlePackageDelete)

	routers := api.Group("/routers")
	routers.Get("/", controllers.HandleRouterList)
	routers.Post("/", controllers.HandleRouterCreate)
	routers.Get("/:id", controllers.HandleRouterGet)
	routers.Put("/:id", controllers.HandleRouterUpdate)
	routers.Delete("/:id", controllers.HandleRouterDelete)
	routers.Post("/:id/test", controllers.HandleRouterTest)

	installations := api.Group("/installations")
	installations.Get("/", controllers.HandleInstallationList)
	installations.Post("/", controllers.HandleInstallationCreate)
	installations.Get("/:id", controllers.HandleInstallationGet)
	installations.Post("/:id/schedule", controllers.HandleInstallationSchedule)
	installations.Post("/:id/approve", controllers.HandleInstallationApprove)
	installations.Post("/:id/reject", controllers.HandleInstallationReject)

	services := api.Group("/services")
	services.Get("/", controllers.HandleServiceList)
	services.Get("/:id", controllers.HandleServiceGet)
	services.Get("/:id/invoices", controllers.HandleServiceInvoices)
	services.Post("/:id/isolate", controllers.HandleServiceIsolate)
	services.Post("/:id/restore", controllers.HandleServiceRestore)
	services.Post("/:id/retry-provision", controllers.HandleServiceRetryProvision)
	services.Post("/:id/terminate", controllers.HandleServiceTerminate)

	invoices := api.Group("/invoices")
	invoices.Get("/", controllers.HandleInvoiceList)
	invoices.Get("/:id", controllers.HandleInvoiceGet)
	invoices.Post("/:id/payment-link", controllers.HandleInvoicePaymentLink)

	admin := api.Group("/admin")
	admin.Get("/dashboard", controllers.HandleAdminDashboard)
	admin.Get("/queue/stats", controllers.HandleAdminQueueStats)
	admin.Get("/queue/keys", controllers.HandleAdminQueueKeys)
	admin.Delete("/queue/keys", controllers.HandleAdminQueueClear)
	admin.Get("/settings", controllers.HandleAdminSettingsGet)
	admin.Put("/settings", controllers.HandleAdminSettingsUpdate)
	admin.Get("/webhook-events", controllers.HandleAdminWebhookEvents)
	admin.Post("/run/billing", controllers.HandleAdminRunBilling)
	admin.Post("/run/isolation-scan", controllers.HandleAdminRunIsolationScan)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
