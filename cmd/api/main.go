package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kursadbilgin/mention-relay/internal/config"
	"github.com/kursadbilgin/mention-relay/internal/handler"
	"github.com/kursadbilgin/mention-relay/internal/infra/postgresql"
	"github.com/kursadbilgin/mention-relay/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/mention-relay/internal/infra/redis"
	"github.com/kursadbilgin/mention-relay/internal/observability"
	"github.com/kursadbilgin/mention-relay/internal/queue"
	"github.com/kursadbilgin/mention-relay/internal/repository"
	"github.com/kursadbilgin/mention-relay/internal/transport"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
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

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(mq)
	defer publisher.Close()

	metrics := observability.NewMetrics()

	pendingRepo := repository.NewGormPendingRepo(db)
	recipientRepo := repository.NewGormRecipientRepo(db)
	settingsRepo := repository.NewGormSettingsRepo(db)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())(c.Context())
		return nil
	})

	if err := handler.RegisterWebhookRoutes(app, publisher, cfg.WebhookSecret, cfg.WebhookSkipVerify, logger); err != nil {
		logger.Fatal("webhook routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterRecipientRoutes(app, recipientRepo); err != nil {
		logger.Fatal("recipient routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterAdminRoutes(app, settingsRepo, pendingRepo); err != nil {
		logger.Fatal("admin routes registration failed", zap.Error(err))
	}

	go func() {
		logger.Info("mention-relay api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Fatal("api server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down api")
	if err := app.Shutdown(); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
}
