package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/api/http/handlers"
	"github.com/spec-kit/ticket-workflow/internal/auth"
	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Departments    *handlers.DepartmentsHandler
	Tickets        *handlers.TicketsHandler
	Steps          *handlers.StepsHandler
	Finance        *handlers.FinanceHandler
	Documents      *handlers.DocumentsHandler
	Assignments    *handlers.AssignmentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireActor())
	api.Get("/me", cfg.Users.Me)
	api.Get("/metrics", auth.RequireRole(domain.RoleOverseer), cfg.Health.Metrics)
	api.Get("/users", cfg.Users.List)

	departments := api.Group("/departments")
	departments.Get("", cfg.Departments.List)
	departments.Post("", auth.RequireRole(domain.RoleOverseer), cfg.Departments.Create)
	departments.Patch("/:id", auth.RequireRole(domain.RoleOverseer), cfg.Departments.SetActive)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/transitions", cfg.Tickets.Transition)
	tickets.Get("/:id/transitions", cfg.Tickets.AvailableTransitions)
	tickets.Get("/:id/audit", cfg.Tickets.ListAudit)
	tickets.Put("/:id/assignee", cfg.Assignments.AssignTicket)
	tickets.Post("/:id/steps", cfg.Steps.AddStep)
	tickets.Post("/:id/finance", cfg.Finance.Submit)
	tickets.Get("/:id/finance", cfg.Finance.History)
	tickets.Post("/:id/finance/:approvalId/approve", auth.RequireRole(domain.RoleFinance), cfg.Finance.Approve)
	tickets.Post("/:id/finance/:approvalId/reject", auth.RequireRole(domain.RoleFinance), cfg.Finance.Reject)

	steps := api.Group("/steps")
	steps.Patch("/:id/status", cfg.Steps.UpdateStatus)
	steps.Delete("/:id", cfg.Steps.DeleteStep)
	steps.Get("/:id/gates", cfg.Steps.Gates)
	steps.Put("/:id/assignee", cfg.Assignments.AssignStep)
	steps.Post("/:id/claim", cfg.Assignments.ClaimStep)
	steps.Post("/:id/dependencies", cfg.Steps.AddDependency)
	steps.Delete("/:id/dependencies/:dependsOn", cfg.Steps.RemoveDependency)

	documents := api.Group("/documents")
	documents.Post("", cfg.Documents.Upload)
	documents.Get("", cfg.Documents.List)
	documents.Get("/:id/content", cfg.Documents.Content)
	documents.Delete("/:id", cfg.Documents.Delete)
}
