package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/purchase-notifier/internal/auth"
	"github.com/kursadbilgin/purchase-notifier/internal/config"
	"github.com/kursadbilgin/purchase-notifier/internal/handler"
	"github.com/kursadbilgin/purchase-notifier/internal/infra/postgresql"
	"github.com/kursadbilgin/purchase-notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/purchase-notifier/internal/infra/redis"
	"github.com/kursadbilgin/purchase-notifier/internal/mailer"
	"github.com/kursadbilgin/purchase-notifier/internal/observability"
	"github.com/kursadbilgin/purchase-notifier/internal/queue"
	"github.com/kursadbilgin/purchase-notifier/internal/registration"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"github.com/kursadbilgin/purchase-notifier/internal/service"
	"github.com/kursadbilgin/purchase-notifier/internal/settings"
	"github.com/kursadbilgin/purchase-notifier/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "purchase-notifier"
	shutdownTimeout = 15 * time.Second
	tokenTTL        = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, serviceName)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	parameterCache, err := infraredis.NewParameterCache(rdb, cfg.ParameterCacheTTL)
	if err != nil {
		logger.Fatal("parameter cache initialization failed", zap.Error(err))
	}
	settingsStore, err := settings.NewStore(repository.NewGormParameterRepo(db), parameterCache, logger)
	if err != nil {
		logger.Fatal("settings store initialization failed", zap.Error(err))
	}
	if err := settingsStore.Seed(ctx, map[string]string{
		settings.KeyDiscAPIURL: cfg.DiscAPIURL,
		settings.KeyDiscAPIKey: cfg.DiscAPIKey,
	}); err != nil {
		logger.Fatal("settings seed failed", zap.Error(err))
	}

	sender, err := newMailSender(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("mail sender initialization failed", zap.Error(err))
	}

	purchaseLogRepo := repository.NewGormPurchaseLogRepo(db)
	purchaseLogService, err := service.NewPurchaseLogService(
		purchaseLogRepo,
		repository.NewGormEmailTemplateRepo(db),
		registration.NewClient(logger),
		settingsStore,
		sender,
		logger,
	)
	if err != nil {
		logger.Fatal("purchase log service initialization failed", zap.Error(err))
	}
	purchaseLogService.SetMetrics(metrics)

	orderLock, err := infraredis.NewRedisOrderLock(rdb, cfg.OrderLockTTL)
	if err != nil {
		logger.Fatal("order lock initialization failed", zap.Error(err))
	}
	orderHook, err := service.NewOrderHook(purchaseLogRepo, purchaseLogService, orderLock, logger)
	if err != nil {
		logger.Fatal("order hook initialization failed", zap.Error(err))
	}
	orderHook.SetMetrics(metrics)

	tokens, err := auth.NewTokenManager([]byte(cfg.AuthJWTSecret), tokenTTL)
	if err != nil {
		logger.Fatal("token manager initialization failed", zap.Error(err))
	}

	readiness := []handler.ReadinessCheck{handler.PostgresCheck(sqlDB), handler.RedisCheck(rdb)}

	var (
		eventProcessor handler.OrderEventProcessor = orderHook
		publisher      queue.Publisher
		consumer       queue.Consumer
	)
	if cfg.QueueEnabled() {
		broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL, cfg.OrderEventsQueue)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}

		rabbitConsumer := queue.NewRabbitMQConsumer(broker, cfg.ConsumerPrefetch, logger)
		rabbitConsumer.SetMetrics(metrics)
		rabbitPublisher := queue.NewRabbitMQPublisher(broker, cfg.OrderEventsQueue)
		consumer, publisher, eventProcessor = rabbitConsumer, rabbitPublisher, rabbitPublisher
		defer closeQueue(logger, publisher, consumer)

		readiness = append(readiness, handler.ReadinessCheck{Name: "rabbitmq", Probe: broker.Ping})
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, readiness...)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	requireAuth := handler.RequireAuth(tokens)
	if err := handler.RegisterExportRoutes(app, repository.NewGormAssessmentPurchaseRepo(db), requireAuth); err != nil {
		logger.Fatal("export routes registration failed", zap.Error(err))
	}

	v1 := app.Group("/v1", requireAuth)
	if err := handler.RegisterPurchaseLogRoutes(v1, purchaseLogService, logger); err != nil {
		logger.Fatal("purchase log routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterSettingsRoutes(v1, settingsStore); err != nil {
		logger.Fatal("settings routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterOrderEventRoutes(v1, eventProcessor); err != nil {
		logger.Fatal("order event routes registration failed", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("purchase-notifier api started", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			logger.Info("order event consumer started", zap.String("queue", cfg.OrderEventsQueue))
			return consumer.Consume(gctx, cfg.OrderEventsQueue, orderHook.HandleEvent)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("purchase-notifier stopped with error", zap.Error(err))
		return
	}
	logger.Info("purchase-notifier stopped")
}

func newMailSender(ctx context.Context, cfg *config.Config, logger *zap.Logger) (mailer.Sender, error) {
	if !cfg.MailEnabled() {
		logger.Warn("AWS_REGION or MAIL_FROM not set, notification emails are logged only")
		return mailer.NewLogSender(logger), nil
	}
	sender, err := mailer.NewSESSender(ctx, cfg.AWSRegion, cfg.MailFrom)
	if err != nil {
		return nil, err
	}
	return sender, nil
}

func closeQueue(logger *zap.Logger, publisher queue.Publisher, consumer queue.Consumer) {
	if err := consumer.Close(); err != nil {
		logger.Warn("failed to close order event consumer", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("failed to close order event publisher", zap.Error(err))
	}
}
