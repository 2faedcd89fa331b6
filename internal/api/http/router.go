package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Categories     *handlers.CategoriesHandler
	Priorities     *handlers.PrioritiesHandler
	Preferences    *handlers.PreferencesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("/accessible", cfg.Tickets.ListAccessible)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/audience", cfg.Tickets.GetAudience)
	tickets.Get("/:id/history", cfg.Tickets.GetHistory)
	tickets.Get("/:id/threads", cfg.Tickets.ListThreads)
	tickets.Post("/:id/threads", cfg.Tickets.AddThread)
	tickets.Post("/:id/assignment", cfg.Tickets.ChangeAssignment)
	tickets.Post("/:id/category", cfg.Tickets.ChangeCategory)
	tickets.Post("/:id/priority", cfg.Tickets.ChangePriority)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)

	protected.Get("/categories/accessible", cfg.Categories.ListAccessible)
	protected.Get("/priorities", cfg.Priorities.List)

	protected.Get("/me/notification-rules", cfg.Preferences.ListRules)
	protected.Put("/me/notification-rules", cfg.Preferences.ReplaceRules)
}
