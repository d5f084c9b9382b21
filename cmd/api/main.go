package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-workflow/internal/api/http"
	"github.com/spec-kit/ticket-workflow/internal/api/http/handlers"
	"github.com/spec-kit/ticket-workflow/internal/auth"
	"github.com/spec-kit/ticket-workflow/internal/config"
	"github.com/spec-kit/ticket-workflow/internal/directory"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/lock"
	"github.com/spec-kit/ticket-workflow/internal/observability"
	"github.com/spec-kit/ticket-workflow/internal/persistence"
	"github.com/spec-kit/ticket-workflow/internal/repository"
	"github.com/spec-kit/ticket-workflow/internal/service"
	"github.com/spec-kit/ticket-workflow/internal/storage"
	"github.com/spec-kit/ticket-workflow/internal/worker"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()
	var redisClient redis.UniversalClient
	if redisConn.Enabled() {
		redisClient = redisConn.Client
	}

	blobs, err := storage.NewFileStore(cfg.Storage.RootDir)
	if err != nil {
		logger.Fatal("failed to open blob store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	dir := directory.NewCached(directory.NewStore(userRepo), redisClient, cfg.Workflow.DirectoryCacheTTL(), logger)

	var locker lock.Locker
	switch cfg.Workflow.LockBackend {
	case config.LockBackendRedis:
		locker = lock.NewRedisLocker(redisClient, cfg.Workflow.LockTTL(), cfg.Workflow.LockWait(), logger)
	default:
		locker = lock.NewLocalLocker(cfg.Workflow.LockWait())
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	var publisher *events.RedisPublisher
	if redisClient != nil {
		publisher = events.NewRedisPublisher(redisClient, cfg.Notification.RedisChannel)
	}
	worker.StartNotificationWorker(dispatcher, notifications, publisher)

	fieldRoles := make([]domain.Role, 0, len(cfg.Workflow.FieldRoles))
	for _, role := range cfg.Workflow.FieldRoles {
		fieldRoles = append(fieldRoles, domain.Role(role))
	}

	departmentRepo := repository.NewDepartmentRepository(pool)
	organization := service.NewOrganizationService(departmentRepo, userRepo, logger)

	deps := service.Dependencies{
		TicketRepo:     repository.NewTicketRepository(pool),
		StepRepo:       repository.NewWorkflowStepRepository(pool),
		ApprovalRepo:   repository.NewFinanceApprovalRepository(pool),
		DocumentRepo:   repository.NewDocumentRepository(pool),
		DepartmentRepo: departmentRepo,
		Audit:          service.NewAuditRecorder(repository.NewAuditLogRepository(pool)),
		Tx:             repository.NewTxManager(pool),
		Locker:         locker,
		Directory:      dir,
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Permissions:    workflow.DefaultPermissions(),
		Gate:           workflow.NewDocumentGate(workflow.NewRoleSet(fieldRoles...)),
		Logger:         logger,
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, cfg.Auth.Issuer)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimitBytes,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	readiness := map[string]handlers.Pinger{"postgres": pg}
	if redisConn.Enabled() {
		readiness["redis"] = redisConn
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness, metrics),
		Users:          handlers.NewUsersHandler(organization),
		Departments:    handlers.NewDepartmentsHandler(organization),
		Tickets:        handlers.NewTicketsHandler(service.NewTicketService(deps)),
		Steps:          handlers.NewStepsHandler(service.NewStepService(deps)),
		Finance:        handlers.NewFinanceHandler(service.NewFinanceService(deps)),
		Documents:      handlers.NewDocumentsHandler(service.NewDocumentService(deps)),
		Assignments:    handlers.NewAssignmentsHandler(service.NewAssignmentService(deps)),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, dir),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
