package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// Handlers are the handlers mounted by NewApp.
type Handlers struct {
	Build      *BuildHandler
	Logs       *LogHandler
	Containers *ContainerHandler
	Proxy      *ProxyHandler
}

// NewApp builds the Fiber app. Subdomain requests go to the proxy first;
// the API answers cross-origin calls from any origin.
func NewApp(h Handlers, cfg fiber.Config) *fiber.App {
	app := fiber.New(cfg)
	app.Use(h.Proxy.ProxyRequest)
	app.Use(cors.New())

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Post("/build_and_run", h.Build.BuildAndRun)
	v1.Get("/logs", h.Logs.StreamLogs)

	// Routes for Container operations
	containers := v1.Group("/containers")
	containers.Get("/", h.Containers.ListContainers)
	containers.Delete("/:id", h.Containers.StopContainer)
	containers.Get("/:id/logs", h.Containers.GetContainerLogs)

	return app
}
