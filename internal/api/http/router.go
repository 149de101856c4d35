package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/telepredict/internal/api/http/handlers"
	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Clients        *handlers.ClientHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if reg := cfg.Metrics.Registry(); reg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	client := api.Group("/client")
	client.Post("/register/", cfg.Clients.Register)
	client.Post("/login/", cfg.Clients.Login)
	asClient := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleClient)}
	client.Post("/add-staff/", append(asClient, cfg.Clients.AddStaff)...)
	client.Get("/profile/", append(asClient, cfg.Clients.Profile)...)
	client.Post("/feedback/", append(asClient, cfg.Clients.Feedback)...)

	staff := api.Group("/staff")
	staff.Post("/login/", cfg.Staff.Login)
	asStaff := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleStaff)}
	staff.Post("/upload/", append(asStaff, cfg.Staff.Upload)...)
	staff.Post("/predict/", append(asStaff, cfg.Staff.Predict)...)
	staff.Get("/history/", append(asStaff, cfg.Staff.History)...)
	staff.Get("/export/:upload_id/", append(asStaff, cfg.Staff.Export)...)
}
