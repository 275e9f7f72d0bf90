package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs one route group on the fiber app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers all route groups. The public router carries the
// webhook and health endpoints; the API router carries the key-protected
// admin API.
func InstallRouter(app *fiber.App) {
	setup(app, NewPublicRouter(), NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
