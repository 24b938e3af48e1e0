package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/social-graph/social-graph/internal/config"
	"github.com/social-graph/social-graph/internal/repository"
	"github.com/social-graph/social-graph/internal/services"
	"github.com/social-graph/social-graph/internal/workers"
	"github.com/social-graph/social-graph/pkg/cache"
	"github.com/social-graph/social-graph/pkg/logger"
	"github.com/social-graph/social-graph/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.NewLogger()
	logger.Info("Starting Social Graph Notification Worker...")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	redisClient := cache.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	notificationEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.NotificationEvents, "notification-worker-group")
	defer notificationEventsConsumer.Close()

	notifRepo := repository.NewNotificationRepository(db.DB)

	// The worker only refreshes derived state; it never produces events of
	// its own, so no producer is wired in.
	notificationService := services.NewNotificationService(notifRepo, redisClient, nil, cfg.Graph.UnreadCacheTTL, logger)

	notificationWorker := workers.NewNotificationWorker(notificationService, notificationEventsConsumer, logger)

	logger.Info("Starting notification worker...")
	go func() {
		if err := notificationWorker.Start(ctx); err != nil {
			logger.WithError(err).Error("Notification worker stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")

	if err := notificationWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop notification worker")
	}

	logger.Info("Worker exited")
}
