package control

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/ponto/internal/control/docs"
	"github.com/saturnino-fabrica-de-software/ponto/internal/control/handler"
	"github.com/saturnino-fabrica-de-software/ponto/internal/control/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/feedback"
)

// Dependencies collects the agent pieces the control API exposes.
type Dependencies struct {
	Engine   handler.CaptureEngine
	Events   handler.EventLister
	Spool    handler.SpoolCounter
	Sessions handler.SessionStore
	Board    *feedback.Board
	Ready    handler.ReadyChecker
	DeviceID string
}

// Router is the local operator-facing HTTP surface.
type Router struct {
	app     *fiber.App
	logger  *slog.Logger
	deps    *Dependencies
	swagger bool
}

func NewRouter(logger *slog.Logger, deps *Dependencies, enableSwagger bool) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Ponto Agent",
	})

	return &Router{
		app:     app,
		logger:  logger,
		deps:    deps,
		swagger: enableSwagger,
	}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	if r.swagger {
		sw := docs.NewSwagger()
		swagger.SwaggerHandler(r.app, sw.MustToJson())
	}

	healthHandler := handler.NewHealthHandler(r.deps.Ready)
	r.app.Get("/healthz", healthHandler.Health)
	r.app.Get("/readyz", healthHandler.Ready)

	agentHandler := handler.NewAgentHandler(
		r.deps.Engine,
		r.deps.Events,
		r.deps.Spool,
		r.deps.Sessions,
		r.deps.Board,
		r.deps.DeviceID,
		r.logger,
	)

	v1 := r.app.Group("/v1")
	v1.Get("/status", agentHandler.Status)
	v1.Get("/events", agentHandler.Events)
	v1.Post("/captures", agentHandler.Trigger)
	v1.Post("/session/logout", agentHandler.Logout)
}

// Listen starts the control server.
func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

// Shutdown stops the control server gracefully.
func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}

// App exposes the fiber app for tests.
func (r *Router) App() *fiber.App {
	return r.app
}
