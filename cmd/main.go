package main

import (
	"context"
	"fmt"
	"log"
	"notification-service/internal/config"
	"notification-service/internal/database/postgres"
	"notification-service/internal/database/redis"
	"notification-service/internal/event"
	"notification-service/internal/google"
	"notification-service/internal/handlers"
	"notification-service/internal/realtime"
	"notification-service/internal/repository"
	"notification-service/internal/services"
	"notification-service/internal/worker"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/var", "log", "notification_service")
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connect to database: %s, retrying", err)
		postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}
	if err := postgres.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	redisClient, err := redis.Connect(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbitConn.Close()

	// Repositories
	notificationRepo := repository.NewNotificationRepository(db)
	jobRepo := repository.NewJobRepository(db)
	domainRepo := repository.NewDomainRepository(db)
	pushTokenRepo := repository.NewPushTokenRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient)

	// Core components
	hub := realtime.NewHub()
	notificationService := services.NewNotificationService(notificationRepo, hub)
	resolver := services.NewRecipientResolver(domainRepo)
	jwtService := services.NewJWTService(cfg.AuthCfg.JWTSecret)

	pushDispatcher, err := google.NewPushDispatcher(&google.FirebaseConfig{
		CredentialsPath: cfg.FirebaseCfg.CredentialsPath,
		ProjectID:       cfg.FirebaseCfg.ProjectID,
		BatchSize:       cfg.FirebaseCfg.BatchSize,
	}, pushTokenRepo)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	emailService := google.NewEmailService(cfg.EmailCfg.Username, cfg.EmailCfg.Password)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Delivery worker
	deliveryHandler := worker.NewNotificationDeliveryHandler(notificationService, pushDispatcher, emailService, domainRepo)
	deliveryWorker := worker.NewWorker(jobRepo, cfg.WorkerCfg.Concurrency, cfg.WorkerCfg.MaxAttempts)
	deliveryWorker.RegisterHandler("notification", deliveryHandler.Handle)
	go deliveryWorker.Start(ctx)

	// Event consumer: fan-out from the domain event bus into delivery jobs
	consumer, err := event.NewQueueConsumer(rabbitConn, &event.ConsumerConfig{
		QueueName:       event.NotificationEventsQueue,
		DeadLetterQueue: event.NotificationEventsDLQ,
		PrefetchCount:   10,
	}, resolver, jobRepo)
	if err != nil {
		log.Fatalf("Failed to setup queue consumer: %v", err)
	}

	go func() {
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Printf("Consumer error: %v", err)
		}
	}()

	// Retention sweep for read notifications
	go notificationService.StartRetentionSweep(ctx, time.Hour)

	// HTTP API
	router := gin.Default()
	router.GET("/checkhealth", func(c *gin.Context) {
		c.String(200, "Notification service is healthy")
	})

	middleware := handlers.NewMiddleware(jwtService, sessionRepo)
	notificationHandler := handlers.NewNotificationHandler(notificationService, jobRepo, pushTokenRepo)
	notificationHandler.RegisterRoutes(router, middleware)

	wsHandler := handlers.NewWSHandler(hub, middleware)
	wsHandler.RegisterRoutes(router)

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := router.Run(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	<-shutdownChan
	log.Println("Shutting down server...")
	cancel()
}
