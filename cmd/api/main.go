package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/social-graph/social-graph/internal/config"
	"github.com/social-graph/social-graph/internal/handlers"
	"github.com/social-graph/social-graph/internal/middleware"
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
	logger.Info("Starting Social Graph API server...")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

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

	graphEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.GraphEvents)
	defer graphEventsProducer.Close()

	notificationEventsProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.NotificationEvents)
	defer notificationEventsProducer.Close()

	notificationEventsConsumer := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.NotificationEvents, "notification-worker-group")
	defer notificationEventsConsumer.Close()

	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	requestRepo := repository.NewFollowRequestRepository(db.DB)
	notifRepo := repository.NewNotificationRepository(db.DB)

	userService := services.NewUserService(userRepo, logger)
	notificationService := services.NewNotificationService(notifRepo, redisClient, notificationEventsProducer, cfg.Graph.UnreadCacheTTL, logger)
	graphService := services.NewGraphService(userRepo, followRepo, requestRepo, notificationService, graphEventsProducer, logger)

	notificationWorker := workers.NewNotificationWorker(notificationService, notificationEventsConsumer, logger)

	go func() {
		if err := notificationWorker.Start(ctx); err != nil {
			logger.WithError(err).Error("Notification worker stopped with error")
		}
	}()

	userHandler := handlers.NewUserHandler(userService, cfg.JWT.Secret)
	graphHandler := handlers.NewGraphHandler(graphService, &cfg.Graph)
	notificationHandler := handlers.NewNotificationHandler(notificationService, &cfg.Graph)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api := router.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)
			users.GET("/search", userHandler.SearchUsers)
			users.GET("/:id", userHandler.GetProfile)
			users.GET("/:id/followers", graphHandler.GetFollowers)
			users.GET("/:id/following", graphHandler.GetFollowing)
			users.GET("/:id/stats", graphHandler.GetFollowStats)
		}

		protected := api.Group("")
		protected.Use(middleware.NewJWTAuth(&middleware.JWTConfig{Secret: cfg.JWT.Secret}))
		{
			protected.PUT("/users/profile", userHandler.UpdateProfile)
			protected.DELETE("/users/profile", userHandler.DeleteAccount)

			protected.POST("/users/follow", graphHandler.Follow)
			protected.DELETE("/users/unfollow/:id", graphHandler.Unfollow)
			protected.GET("/users/:id/is-following", graphHandler.IsFollowing)
			protected.GET("/users/:id/stories/visibility", graphHandler.StoriesVisibility)

			protected.POST("/follow-requests", graphHandler.SendFollowRequest)
			protected.GET("/follow-requests", graphHandler.GetFollowRequests)
			protected.POST("/follow-requests/:id/accept", graphHandler.AcceptFollowRequest)
			protected.POST("/follow-requests/:id/reject", graphHandler.RejectFollowRequest)

			protected.GET("/notifications", notificationHandler.List)
			protected.GET("/notifications/unread", notificationHandler.UnreadCount)
			protected.GET("/notifications/unread/stream", notificationHandler.StreamUnreadCount)
			protected.POST("/notifications/:id/read", notificationHandler.MarkAsRead)
			protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	if err := notificationWorker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop notification worker")
	}

	logger.Info("Server exited")
}

func init() {
	dirs := []string{"logs", "configs"}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Failed to create directory %s: %v", dir, err)
		}
	}

	configPath := "configs/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := createDefaultConfig(configPath); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}

func createDefaultConfig(path string) error {
	defaultConfig := `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 30s

database:
  host: "localhost"
  port: 5432
  user: "graphuser"
  password: "graphpass"
  dbname: "socialgraph"
  sslmode: "disable"
  max_open_conns: 100
  max_idle_conns: 10

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 100
  min_idle_conns: 10

kafka:
  brokers:
    - "localhost:9092"
  topics:
    graph_events: "graph-events"
    notification_events: "notification-events"

jwt:
  secret: "your-secret-key-change-in-production"
  expire_time: 24h

graph:
  default_page_size: 20
  max_page_size: 100
  unread_cache_ttl: 5m`

	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
