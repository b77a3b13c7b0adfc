package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/appeal-service/internal/api/http"
	"github.com/spec-kit/appeal-service/internal/api/http/handlers"
	"github.com/spec-kit/appeal-service/internal/auth"
	"github.com/spec-kit/appeal-service/internal/cache"
	"github.com/spec-kit/appeal-service/internal/config"
	"github.com/spec-kit/appeal-service/internal/observability"
	"github.com/spec-kit/appeal-service/internal/persistence"
	"github.com/spec-kit/appeal-service/internal/ratelimit"
	"github.com/spec-kit/appeal-service/internal/repository"
	"github.com/spec-kit/appeal-service/internal/service"
	"github.com/spec-kit/appeal-service/internal/worker"
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
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	workloadRepo := repository.NewWorkloadRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)

	var workloadCache cache.WorkloadCache
	if cfg.Cache.Enabled {
		workloadCache = cache.NewRedisWorkloadCache(redis.Client, cfg.Cache.WorkloadTTL, logger)
	}

	tracker := service.NewWorkloadService(service.WorkloadDependencies{
		WorkloadRepo: workloadRepo,
		Cache:        workloadCache,
		Logger:       logger,
	})
	engine := service.NewAssignmentService(service.AssignmentDependencies{
		Tracker: tracker,
		Weights: cfg.Scoring,
		Logger:  logger,
	})
	dispatcher := newEventDispatcher(logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  messageRepo,
		OperatorRepo: operatorRepo,
		Tracker:      tracker,
		Engine:       engine,
		Dispatcher:   dispatcher,
		Policy:       cfg.Ticket,
		Logger:       logger,
	})
	sweeper := service.NewEscalationService(service.EscalationDependencies{
		TicketRepo: ticketRepo,
		Lifecycle:  ticketService,
		Threshold:  cfg.Escalation.Threshold,
		Logger:     logger,
		Metrics:    metrics,
	})

	rules := make(map[string]ratelimit.Policy, len(cfg.RateLimit.Rules))
	for action, rule := range cfg.RateLimit.Rules {
		rules[action] = ratelimit.Policy{MaxAttempts: rule.MaxAttempts, Window: rule.Window}
	}
	limiter := ratelimit.New(rules)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, operatorRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(operatorRepo, tokens),
		Tickets:        handlers.NewTicketsHandler(ticketService, limiter, metrics),
		Operators:      handlers.NewOperatorsHandler(ticketService, engine, tracker),
		AuthMiddleware: authMiddleware,
	})

	if cfg.Escalation.Enabled {
		worker.StartEscalationWorker(ctx, sweeper, cfg.Escalation.SweepInterval, logger)
	}

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
