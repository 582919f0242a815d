package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dig-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/dig-ticket-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Realtime       *handlers.RealtimeHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.IssueToken)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	intake := auth.RequireRole(auth.RoleAgent, auth.RoleOperator)
	operator := auth.RequireRole(auth.RoleOperator)

	tickets.Post("/", intake, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", intake, cfg.Tickets.GetTicket)
	tickets.Patch("/:id", intake, cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/confirm", intake, cfg.Tickets.ConfirmTicket)
	tickets.Post("/:id/responses", operator, cfg.Tickets.RecordResponse)
	tickets.Post("/:id/transitions", operator, cfg.Tickets.TransitionTicket)

	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.AuthMiddleware.Handle, operator, cfg.Metrics.Snapshot)
	}
	if cfg.Realtime != nil {
		app.Get("/ws/tickets", cfg.AuthMiddleware.Handle, operator, cfg.Realtime.Upgrade, cfg.Realtime.Stream())
	}
}
