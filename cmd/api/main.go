package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/category"
	"github.com/spec-kit/helpdesk-service/internal/change"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/entity"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/queue"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
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

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	entityRepo := repository.NewEntityRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	directoryRepo := repository.NewDirectoryRepository(pool, entityRepo)
	ticketRepo := repository.NewTicketRepository(pool)
	threadRepo := repository.NewThreadRepository(pool)
	changeRepo := repository.NewChangeRepository(pool)
	priorityRepo := repository.NewPriorityRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	recipientRepo := repository.NewRecipientRepository(pool)
	ruleRepo := repository.NewRuleRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)

	entityResolver := entity.NewResolver(entityRepo, logger)
	categoryResolver := category.NewResolver(categoryRepo)
	accessResolver := access.NewResolver(ticketRepo, directoryRepo)
	validator := change.NewValidator()

	initQueue := queue.New(redis.Client, queue.KeyNotificationInit, logger)
	deliveryQueue := queue.New(redis.Client, queue.KeyNotificationDelivery, logger)

	pipeline := notify.NewPipeline(notify.Dependencies{
		Events:        eventRepo,
		Recipients:    recipientRepo,
		Rules:         ruleRepo,
		Users:         userRepo,
		Tickets:       ticketRepo,
		Threads:       threadRepo,
		Changes:       changeRepo,
		Audience:      accessResolver,
		DeliveryQueue: deliveryQueue,
		Email:         notify.NewLogEmailSender(cfg.Notify, logger),
		SMS:           notify.NewLogSMSSender(cfg.Notify, logger),
		Logger:        logger,
		Metrics:       metrics,
	})

	initWorker := queue.NewWorker(initQueue, pipeline.HandleInit, queue.WorkerOptions{
		Concurrency: cfg.Worker.InitConcurrency,
		MaxRetries:  cfg.Worker.MaxRetries,
	}, logger)
	deliveryWorker := queue.NewWorker(deliveryQueue, pipeline.HandleDelivery, queue.WorkerOptions{
		Concurrency: cfg.Worker.DeliveryConcurrency,
		MaxRetries:  cfg.Worker.MaxRetries,
	}, logger)
	go initWorker.Run(ctx)
	go deliveryWorker.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, directoryRepo, apiKeyRepo, entityResolver)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		ThreadRepo:   threadRepo,
		ChangeRepo:   changeRepo,
		PriorityRepo: priorityRepo,
		Access:       accessResolver,
		Categories:   categoryResolver,
		Validator:    validator,
		Entities:     entityResolver,
		InitQueue:    initQueue,
		Logger:       logger,
		Metrics:      metrics,
	})
	authService := service.NewAuthService(userRepo, tokenManager)
	prefService := service.NewPreferenceService(ruleRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, time.Duration(cfg.App.RequestTimeoutSeconds)*time.Second)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Categories:     handlers.NewCategoriesHandler(categoryResolver),
		Priorities:     handlers.NewPrioritiesHandler(priorityRepo),
		Preferences:    handlers.NewPreferencesHandler(prefService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
