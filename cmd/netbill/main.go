package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lumenisp/netbill/app/controllers"
	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/billing"
	"github.com/lumenisp/netbill/internal/pkg/cache"
	"github.com/lumenisp/netbill/internal/pkg/database"
	"github.com/lumenisp/netbill/internal/pkg/env"
	"github.com/lumenisp/netbill/internal/pkg/isolation"
	"github.com/lumenisp/netbill/internal/pkg/jobqueue"
	"github.com/lumenisp/netbill/internal/pkg/middleware"
	"github.com/lumenisp/netbill/internal/pkg/mikrotik"
	"github.com/lumenisp/netbill/internal/pkg/notification"
	"github.com/lumenisp/netbill/internal/pkg/payment"
	"github.com/lumenisp/netbill/internal/pkg/paymentgateway"
	"github.com/lumenisp/netbill/internal/pkg/provisioning"
	"github.com/lumenisp/netbill/internal/pkg/router"
)

// queueEnqueuer defers follow-up work to the job queue manager. The engines
// are built before the manager exists, so resolution happens at call time.
type queueEnqueuer struct{}

func (queueEnqueuer) EnqueueRestore(serviceID uint) error {
	return jobqueue.GetManager().EnqueueRestore(serviceID)
}

func (queueEnqueuer) EnqueueNotification(channel, recipient, subject, body string) error {
	return jobqueue.GetManager().EnqueueNotification(channel, recipient, subject, body)
}

func main() {
	app, pool := NewApplication()

	// graceful shutdown: stop taking requests, then drain the job queue
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
		jobqueue.GetManager().Stop()
		pool.Close()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *mikrotik.Pool) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()
	settings := models.GetAppSettings()

	pool := mikrotik.NewPoolFromSettings(settings)
	routerClient := mikrotik.NewAPIClient(pool, settings.GetRouterConnectAttempts())

	registry := paymentgateway.NewRegistryFromEnv()

	isolationEngine := isolation.NewEngine(repos.Service, repos.Invoice, routerClient, settings)
	provisioningEngine := provisioning.NewEngine(database.GetDB(), repos.Service, routerClient, settings)
	billingEngine := billing.NewEngine(repos.Service, repos.Invoice, registry.Default(), queueEnqueuer{}, settings)
	processor := payment.NewProcessor(database.GetDB(), repos.Payment, repos.WebhookEvent, queueEnqueuer{}, settings)

	manager := jobqueue.InitManager(&jobqueue.Dependencies{
		Services:     repos.Service,
		Isolation:    isolationEngine,
		Provisioning: provisioningEngine,
		Notifier:     notification.NewMultiSender(settings),
	}, billingEngine)
	manager.Start()

	controllers.InitializeWebhookController(registry, processor)
	controllers.InitializeServiceController(isolationEngine, provisioningEngine)
	controllers.InitializeRouterController(routerClient)

	app := fiber.New(fiber.Config{
		AppName: "netbill",
	})

	app.Use(recover.New(), logger.New())

	// fiber metrics, admin key protected
	app.Get("/metrics", middleware.AdminAPIKeyMiddleware(), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, pool
}
