package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/mention-relay/internal/config"
	"github.com/kursadbilgin/mention-relay/internal/infra/postgresql"
	"github.com/kursadbilgin/mention-relay/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/mention-relay/internal/infra/redis"
	"github.com/kursadbilgin/mention-relay/internal/observability"
	"github.com/kursadbilgin/mention-relay/internal/provider"
	"github.com/kursadbilgin/mention-relay/internal/queue"
	"github.com/kursadbilgin/mention-relay/internal/repository"
	"github.com/kursadbilgin/mention-relay/internal/schedule"
	"github.com/kursadbilgin/mention-relay/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const consumerPrefetch = 8

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
	consumer := queue.NewRabbitMQConsumer(mq, consumerPrefetch, logger)
	defer consumer.Close()

	window, err := schedule.ParseWindow(cfg.Timezone, cfg.QuietStart, cfg.QuietEnd)
	if err != nil {
		logger.Fatal("invalid quiet window", zap.Error(err))
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	botProvider, err := provider.NewBotAPIProvider(cfg.BotAPIURL, cfg.BotToken)
	if err != nil {
		logger.Fatal("bot provider initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	pendingRepo := repository.NewGormPendingRepo(db)
	processedRepo := repository.NewGormProcessedRepo(db)
	recipientRepo := repository.NewGormRecipientRepo(db)
	settingsRepo := repository.NewGormSettingsRepo(db)

	ingestion, err := service.NewIngestionService(
		pendingRepo,
		processedRepo,
		recipientRepo,
		window,
		cfg.InitialDelayHours,
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("ingestion service initialization failed", zap.Error(err))
	}

	formatter := service.NewFormatter(cfg.TitleTruncateLen, cfg.CommentTruncateLen, cfg.WorkItemURLTemplate)

	deliveryWorker, err := service.NewDeliveryWorker(
		pendingRepo,
		settingsRepo,
		window,
		botProvider,
		limiter,
		formatter,
		service.DeliveryWorkerConfig{
			PollInterval:        time.Duration(cfg.PollIntervalSeconds) * time.Second,
			RepeatIntervalHours: cfg.RepeatIntervalHours,
			TTL:                 time.Duration(cfg.TTLHours * float64(time.Hour)),
			SendRetryMax:        cfg.SendRetryMax,
		},
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("delivery worker initialization failed", zap.Error(err))
	}

	janitor, err := service.NewJanitor(
		processedRepo,
		settingsRepo,
		cfg.ProcessedRetentionDays,
		cfg.CleanupIntervalHours,
		logger,
	)
	if err != nil {
		logger.Fatal("janitor initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("event consumer started", zap.String("queue", queue.EventsQueue))
		return consumer.Consume(gCtx, queue.EventsQueue, ingestion.HandleMessage)
	})
	g.Go(func() error {
		logger.Info("delivery worker started",
			zap.Int("pollIntervalSeconds", cfg.PollIntervalSeconds),
		)
		return deliveryWorker.Start(gCtx)
	})
	g.Go(func() error {
		return janitor.Start(gCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("worker stopped")
}
