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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/venuelane/service-reservation/internal/application"
	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/config"
	"github.com/venuelane/service-reservation/internal/events"
	"github.com/venuelane/service-reservation/internal/handler"
	"github.com/venuelane/service-reservation/internal/platform/auth"
	"github.com/venuelane/service-reservation/internal/platform/database"
	"github.com/venuelane/service-reservation/internal/platform/kafka"
	"github.com/venuelane/service-reservation/internal/platform/logger"
	"github.com/venuelane/service-reservation/internal/platform/metrics"
	"github.com/venuelane/service-reservation/internal/platform/middleware"
	"github.com/venuelane/service-reservation/internal/repository"
	"github.com/venuelane/service-reservation/internal/storage"
	"github.com/venuelane/service-reservation/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-reservation")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-reservation",
		zap.String("port", cfg.Port),
		zap.String("timezone", cfg.Timezone),
	)

	// The venue clock: every civil date in the system is interpreted here
	venueClock, err := clock.New(cfg.Timezone)
	if err != nil {
		log.Fatal("failed to initialize clock", zap.Error(err))
	}

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.StatusHistoryModel{},
			&repository.RetryJobModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories and stores
	bookingRepo := repository.NewGormBookingRepository(db, venueClock)
	historyRepo := repository.NewGormHistoryRepository(db)
	jobRepo := repository.NewGormRetryJobRepository(db)

	blobStore, err := storage.NewFilesystemBlobStore(cfg.BlobDir)
	if err != nil {
		log.Fatal("failed to initialize blob store", zap.Error(err))
	}

	// Initialize application service
	notifier := events.NewKafkaNotifier(kafkaProducer)
	reservationService := application.NewReservationService(
		bookingRepo,
		historyRepo,
		jobRepo,
		blobStore,
		notifier,
		venueClock,
		cfg.TokenGrace,
		log,
	)

	// Register Prometheus collectors
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the intake consumer in a goroutine
	intakeConsumer := events.NewIntakeConsumer(cfg.KafkaBrokers, reservationService, log)
	defer func() { _ = intakeConsumer.Close() }()

	go func() {
		if err := intakeConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("intake consumer error", zap.Error(err))
		}
	}()

	// Start the retry worker in a goroutine
	retryWorker := worker.New(
		jobRepo,
		worker.DefaultHandlers(blobStore, reservationService),
		venueClock,
		worker.Options{
			Interval:  cfg.WorkerInterval,
			Burst:     cfg.WorkerBurst,
			IdleDelay: cfg.WorkerIdleDelay,
		},
		log,
	)

	go func() {
		if err := retryWorker.Run(ctx); err != nil && err != context.Canceled {
			log.Error("retry worker error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	reservationHandler := handler.NewReservationHandler(reservationService, jwtManager, log)
	adminHandler := handler.NewAdminHandler(reservationService, jwtManager, log)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Health and metrics
	router.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "service-reservation"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Register routes
	api := router.Group("/api/v1")
	reservationHandler.RegisterRoutes(api)
	adminHandler.RegisterRoutes(api)

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

	log.Info("shutting down service-reservation...")

	// Stop the consumer and worker
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-reservation stopped")
}
