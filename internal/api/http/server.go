package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/api/http/handlers"
	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/events"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/internal/repository"
	"github.com/spec-kit/telepredict/internal/service"
)

const maxUploadBytes = 32 << 20

// Server is the in-memory stand-in for the remote prediction service.
type Server struct {
	App           *fiber.App
	Auth          *service.AuthService
	Company       *service.CompanyService
	Staff         *service.StaffService
	Notifications *service.NotificationService
}

// NewServer wires repositories, services and routes. deps are reported by the
// readiness probe.
func NewServer(cfg config.Config, logger *zap.Logger, metrics *observability.Metrics, deps map[string]handlers.Pinger) *Server {
	logger = observability.OrNop(logger)

	clientRepo := repository.NewClientRepository()
	staffRepo := repository.NewStaffRepository()
	subRepo := repository.NewSubscriptionRepository()
	feedbackRepo := repository.NewFeedbackRepository()
	datasetRepo := repository.NewDatasetRepository()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		ClientRepo:       clientRepo,
		StaffRepo:        staffRepo,
		SubscriptionRepo: subRepo,
		Dispatcher:       dispatcher,
	})
	companyService := service.NewCompanyService(cfg, service.CompanyDependencies{
		ClientRepo:       clientRepo,
		StaffRepo:        staffRepo,
		SubscriptionRepo: subRepo,
		FeedbackRepo:     feedbackRepo,
		Dispatcher:       dispatcher,
	})
	staffService := service.NewStaffService(service.StaffDependencies{
		DatasetRepo: datasetRepo,
		Dispatcher:  dispatcher,
	})
	notifications := service.NewNotificationService(dispatcher, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             maxUploadBytes,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, metrics, cfg.Server.RequestTimeout())
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Clients:        handlers.NewClientHandler(authService, companyService),
		Staff:          handlers.NewStaffHandler(authService, staffService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), clientRepo, staffRepo),
		Metrics:        metrics,
	})

	return &Server{
		App:           app,
		Auth:          authService,
		Company:       companyService,
		Staff:         staffService,
		Notifications: notifications,
	}
}
