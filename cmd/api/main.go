package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/dig-ticket-service/internal/api/http"
	"github.com/spec-kit/dig-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/dig-ticket-service/internal/auth"
	"github.com/spec-kit/dig-ticket-service/internal/clock"
	"github.com/spec-kit/dig-ticket-service/internal/compliance"
	"github.com/spec-kit/dig-ticket-service/internal/config"
	"github.com/spec-kit/dig-ticket-service/internal/events"
	"github.com/spec-kit/dig-ticket-service/internal/geo"
	"github.com/spec-kit/dig-ticket-service/internal/observability"
	"github.com/spec-kit/dig-ticket-service/internal/persistence"
	"github.com/spec-kit/dig-ticket-service/internal/realtime"
	"github.com/spec-kit/dig-ticket-service/internal/repository"
	"github.com/spec-kit/dig-ticket-service/internal/service"
	"github.com/spec-kit/dig-ticket-service/internal/validation"
	"github.com/spec-kit/dig-ticket-service/internal/worker"
)

func main() {
	envFile := pflag.String("env-file", ".env", "environment file loaded before reading configuration")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
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

	calendar, err := compliance.LoadCalendar(cfg.Compliance.HolidayFile, cfg.Compliance.TimeZone)
	if err != nil {
		logger.Fatal("failed to load holiday calendar", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repo repository.TicketRepository
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repo = repository.NewTicketRepository(pg.PoolHandle())
	} else {
		logger.Warn("POSTGRES_DSN not set; tickets are kept in memory")
		repo = repository.NewMemoryTicketRepository()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var gapCache validation.GapCache
	if cache := redis.GapCache(cfg.Redis); cache != nil {
		gapCache = cache
	}
	validator := validation.NewCachedValidator(validation.NewValidator(calendar), gapCache, logger)

	var resolver geo.Resolver
	if client := geo.NewClient(cfg.Geo); client != nil {
		resolver = geo.NewBounded(client, cfg.Geo.EnrichTimeout())
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	notificationService := service.NewNotificationService(dispatcher, hub, logger)
	notificationService.RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Repo:       repo,
		Validator:  validator,
		Calendar:   calendar,
		Clock:      clock.Real(),
		IDs:        clock.UUIDs(),
		Resolver:   resolver,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	go worker.RunExpirySweeper(ctx, ticketService, cfg.Compliance.ExpirySweepInterval(), logger)

	authService := service.NewAuthService(cfg.Auth, clock.Real())
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Realtime:       handlers.NewRealtimeHandler(hub),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("service started",
		zap.String("addr", cfg.App.Addr()),
		zap.Bool("postgres", pg.Enabled()),
		zap.Bool("redis", redis.Enabled()),
		zap.Bool("geo", resolver != nil))

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	snap := metrics.Snapshot()
	logger.Info("stopped", zap.Int64("enrichment_failures", snap.EnrichmentFailures))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
