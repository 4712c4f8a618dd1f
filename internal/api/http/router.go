package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Staff          *handlers.StaffHandler
	Interventions  *handlers.InterventionsHandler
	Slots          *handlers.SlotsHandler
	Appointments   *handlers.AppointmentsHandler
	Evaluations    *handlers.EvaluationsHandler
	Technicians    *handlers.TechniciansHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)
	authGroup.Post("/staff/login", cfg.Staff.Login)
	authGroup.Post("/technicians/login", cfg.Staff.LoginTechnician)

	staffOnly := auth.RequireStaffRole(domain.StaffRoleResponsable, domain.StaffRoleAdmin)

	interventions := app.Group("/interventions", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	interventions.Get("/stats", staffOnly, cfg.Interventions.Stats)
	interventions.Post("", staffOnly, cfg.Interventions.Create)
	interventions.Get("", cfg.Interventions.List)
	interventions.Get("/:id", cfg.Interventions.Get)
	interventions.Patch("/:id", staffOnly, cfg.Interventions.Update)
	interventions.Delete("/:id", staffOnly, cfg.Interventions.Delete)
	interventions.Post("/:id/transition", cfg.Interventions.Transition)
	interventions.Post("/:id/parts", cfg.Interventions.AddPart)
	interventions.Post("/:id/reassign", staffOnly, cfg.Interventions.Reassign)
	interventions.Get("/:id/invoice", cfg.Interventions.Invoice)
	interventions.Post("/:id/evaluation", auth.RequireUser(), cfg.Evaluations.Create)
	interventions.Get("/:id/evaluation", cfg.Evaluations.Get)

	slots := app.Group("/slots", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	slots.Get("/free", cfg.Slots.ListFree)
	slots.Get("", staffOnly, cfg.Slots.List)
	slots.Post("", staffOnly, cfg.Slots.Create)
	slots.Post("/recurring", staffOnly, cfg.Slots.CreateRecurring)
	slots.Get("/:id", cfg.Slots.Get)
	slots.Delete("/:id", staffOnly, cfg.Slots.Delete)

	appointments := app.Group("/appointments", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	appointments.Post("", auth.RequireUser(), cfg.Appointments.Create)
	appointments.Get("", cfg.Appointments.List)
	appointments.Get("/:id", cfg.Appointments.Get)
	appointments.Post("/:id/treat", staffOnly, cfg.Appointments.Treat)
	appointments.Post("/:id/cancel", cfg.Appointments.Cancel)

	technicians := app.Group("/technicians", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	technicians.Get("", cfg.Technicians.List)
	technicians.Post("", staffOnly, cfg.Technicians.Create)
	technicians.Get("/:id", cfg.Technicians.Get)
	technicians.Put("/:id/availability", staffOnly, cfg.Technicians.SetAvailability)
}
