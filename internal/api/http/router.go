package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/appeal-service/internal/api/http/handlers"
	"github.com/spec-kit/appeal-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Operators      *handlers.OperatorsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/operators/login", cfg.Auth.OperatorLogin)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireUser())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)

	operators := app.Group("/operators", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	operators.Get("/tickets", cfg.Operators.ListTickets)
	operators.Get("/tickets/:id", cfg.Operators.GetTicket)
	operators.Post("/tickets/:id/messages", cfg.Operators.ReplyTicket)
	operators.Post("/tickets/:id/close", cfg.Operators.CloseTicket)
	operators.Post("/availability", cfg.Operators.SetAvailability)
	operators.Get("/workload", cfg.Operators.GetWorkload)

	assignment := operators.Group("", auth.RequireAssignCapability())
	assignment.Post("/tickets/:id/assign", cfg.Operators.AssignTicket)
	assignment.Post("/tickets/:id/unassign", cfg.Operators.UnassignTicket)
	assignment.Post("/tickets/:id/reassign", cfg.Operators.ReassignTicket)
	assignment.Get("/assignment-preview", cfg.Operators.AssignmentPreview)
}
