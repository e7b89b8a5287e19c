package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/servicehub/service-booking/internal/application"
	"github.com/servicehub/service-booking/internal/common/auth"
	"github.com/servicehub/service-booking/internal/common/database"
	"github.com/servicehub/service-booking/internal/common/health"
	"github.com/servicehub/service-booking/internal/common/kafka"
	"github.com/servicehub/service-booking/internal/common/logger"
	"github.com/servicehub/service-booking/internal/common/middleware"
	"github.com/servicehub/service-booking/internal/config"
	"github.com/servicehub/service-booking/internal/events"
	"github.com/servicehub/service-booking/internal/handler"
	"github.com/servicehub/service-booking/internal/lock"
	"github.com/servicehub/service-booking/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(&repository.BookingModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Initialize event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaConfig.Enabled && len(cfg.KafkaConfig.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		log.Warn("kafka disabled, booking events will not be published")
	}

	healthHandler := health.NewHandler(db, "service-booking")

	// Initialize per-booking lock
	var locker lock.Locker
	if cfg.RedisConfig.Addr != "" {
		redisClient := goRedis.NewClient(&goRedis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = redisClient.Close() }()

		redisLocker := lock.NewRedisLocker(redisClient, cfg.LockConfig.TTL, log)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisLocker.Ping(pingCtx); err != nil {
			pingCancel()
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		pingCancel()
		healthHandler.AddChecker("redis", redisLocker)
		locker = redisLocker
		log.Info("using redis booking lock", zap.String("addr", cfg.RedisConfig.Addr))
	} else {
		locker = lock.NewKeyedMutex()
		log.Info("using in-process booking lock")
	}

	// Initialize application service
	bookingRepo := repository.NewGormBookingRepository(db)
	bookingService := application.NewBookingService(
		bookingRepo,
		publisher,
		locker,
		cfg.LockConfig.Wait,
		log,
	)

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log))

	// Register routes
	healthHandler.RegisterRoutes(router)
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
