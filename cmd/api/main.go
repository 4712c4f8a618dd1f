package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/field-service/internal/api/http"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/external"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	technicianRepo := repository.NewTechnicianRepository(pool)
	interventionRepo := repository.NewInterventionRepository(pool)
	partUsageRepo := repository.NewPartUsageRepository(pool)
	slotRepo := repository.NewSlotRepository(pool)
	requestRepo := repository.NewAppointmentRequestRepository(pool)
	evaluationRepo := repository.NewEvaluationRepository(pool)

	clientCfg := external.HTTPClientConfig{
		ComplaintBaseURL: cfg.External.ComplaintBaseURL,
		WarrantyBaseURL:  cfg.External.WarrantyBaseURL,
		CatalogBaseURL:   cfg.External.CatalogBaseURL,
		Timeout:          cfg.External.Timeout(),
	}
	complaintClient := external.NewComplaintClient(clientCfg)
	warrantyClient := external.NewWarrantyClient(clientCfg)
	catalogClient := external.NewCatalogClient(clientCfg)

	dispatcher := events.NewAsyncDispatcher(logger)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:       userRepo,
		StaffRepo:      staffRepo,
		TechnicianRepo: technicianRepo,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, staffRepo, technicianRepo)

	interventionService := service.NewInterventionService(service.InterventionDependencies{
		InterventionRepo: interventionRepo,
		PartUsageRepo:    partUsageRepo,
		TechnicianRepo:   technicianRepo,
		ComplaintClient:  complaintClient,
		WarrantyClient:   warrantyClient,
		CatalogClient:    catalogClient,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	slotService := service.NewSlotService(service.SlotDependencies{
		SlotRepo:       slotRepo,
		TechnicianRepo: technicianRepo,
		Cache:          redis,
		Logger:         logger,
	})
	appointmentService := service.NewAppointmentService(service.AppointmentDependencies{
		RequestRepo: requestRepo,
		SlotService: slotService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	evaluationService := service.NewEvaluationService(service.EvaluationDependencies{
		EvaluationRepo:   evaluationRepo,
		InterventionRepo: interventionRepo,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	technicianService := service.NewTechnicianService(technicianRepo, cfg.Auth.BcryptCost, logger)

	notificationService := service.NewNotificationService(dispatcher, userRepo, staffRepo, technicianRepo, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Staff:          handlers.NewStaffHandler(authService),
		Interventions:  handlers.NewInterventionsHandler(interventionService),
		Slots:          handlers.NewSlotsHandler(slotService),
		Appointments:   handlers.NewAppointmentsHandler(appointmentService),
		Evaluations:    handlers.NewEvaluationsHandler(evaluationService),
		Technicians:    handlers.NewTechniciansHandler(technicianService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
