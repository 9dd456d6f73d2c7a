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
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/freightline/service-loads/internal/adapters/routeclient"
	"github.com/freightline/service-loads/internal/application"
	"github.com/freightline/service-loads/internal/application/recalc"
	"github.com/freightline/service-loads/internal/config"
	loadEvents "github.com/freightline/service-loads/internal/events"
	"github.com/freightline/service-loads/internal/handler"
	"github.com/freightline/service-loads/internal/repository"
	"github.com/freightline/service-loads/pkg/database"
	"github.com/freightline/service-loads/pkg/health"
	"github.com/freightline/service-loads/pkg/kafka"
	"github.com/freightline/service-loads/pkg/logger"
	"github.com/freightline/service-loads/pkg/middleware"
)

func main() {
	// Load .env in local development; ignore if absent
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-loads")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-loads",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.LoadModel{}, &repository.StopModel{}, &repository.FacilityModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	}

	// Initialize redis for the route resolution cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	defer func() { _ = redisClient.Close() }()

	// Initialize routing gateway client
	routeCache := routeclient.NewResolutionCache(redisClient, cfg.Routing.CacheTTL)
	resolver, err := routeclient.NewGatewayResolver(cfg.Routing.BaseURL, cfg.Routing.APIKey, routeCache, log)
	if err != nil {
		log.Fatal("failed to create routing gateway client", zap.Error(err))
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	loadRepo := repository.NewGormLoadRepository(db)
	stopRepo := repository.NewGormStopRepository(db)
	facilityRepo := repository.NewGormFacilityRepository(db)

	// Initialize the recalculation registry (one coordinator per load)
	registry := recalc.NewRegistry(resolver, recalc.Config{
		Debounce:       cfg.Recalc.Debounce,
		ResolveTimeout: cfg.Recalc.ResolveTimeout,
	}, log)

	// Initialize application services
	loadService := application.NewLoadService(
		loadRepo,
		stopRepo,
		facilityRepo,
		registry,
		kafkaProducer,
		log,
	)
	facilityService := application.NewFacilityService(facilityRepo, log)

	// Initialize and start the map route consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "loads-service"
	routeConsumer := loadEvents.NewRouteLoadedConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		loadService,
		log,
	)
	defer func() { _ = routeConsumer.Close() }()

	go func() {
		log.Info("starting route loaded consumer")
		if err := routeConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("route loaded consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	loadHandler := handler.NewLoadHandler(loadService)
	routeHandler := handler.NewRouteHandler(loadService)
	facilityHandler := handler.NewFacilityHandler(facilityService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-loads")
	healthHandler.RegisterRoutes(router)

	// Register routes
	loadHandler.RegisterRoutes(&router.RouterGroup)
	routeHandler.RegisterRoutes(&router.RouterGroup)
	facilityHandler.RegisterRoutes(&router.RouterGroup)

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

	log.Info("shutting down service-loads...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-loads stopped")
}
