package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stocklane/allocation-service/internal/application"
	"github.com/stocklane/allocation-service/internal/infrastructure/catalog"
	mongoRepo "github.com/stocklane/allocation-service/internal/infrastructure/mongodb"
	"github.com/stocklane/allocation-service/pkg/cloudevents"
	"github.com/stocklane/allocation-service/pkg/kafka"
	"github.com/stocklane/allocation-service/pkg/keylock"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
	"github.com/stocklane/allocation-service/pkg/middleware"
	"github.com/stocklane/allocation-service/pkg/mongodb"
	"github.com/stocklane/allocation-service/pkg/outbox"
	"github.com/stocklane/allocation-service/pkg/tracing"
)

const serviceName = "allocation-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting allocation-service API")

	config := loadConfig()
	ctx := context.Background()

	// OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	// MongoDB with instrumentation and circuit breaker
	mongoClient, err := mongodb.NewProductionClient(ctx, config.MongoDB, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Kafka producer with instrumentation and circuit breaker
	producer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceAllocation)

	// Repositories
	db := mongoClient.Database()
	inventoryRepo := mongoRepo.NewInventoryRepository(db, mongoClient, eventFactory)
	reservationRepo := mongoRepo.NewReservationRepository(db)
	movementRepo := mongoRepo.NewMovementRepository(db)

	// Outbox publisher drains the events the repositories queue
	outboxPublisher := outbox.NewPublisher(
		inventoryRepo.GetOutboxRepository(),
		producer,
		logger,
		m,
		&outbox.PublisherConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    100,
		},
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	// Warehouse catalog collaborator
	warehouseCatalog := catalog.NewClient(config.CatalogURL, config.CatalogTimeout, logger.Logger)
	logger.Info("Warehouse catalog client initialized", "baseUrl", config.CatalogURL)

	// Application services share one lock registry so reservation returns,
	// movements, and transfers serialize per pair within this process.
	locks := keylock.NewRegistry()
	outboxRepo := inventoryRepo.GetOutboxRepository()

	ledgerService := application.NewLedgerService(inventoryRepo, movementRepo, locks, m, logger)
	reservationService := application.NewReservationService(
		inventoryRepo, reservationRepo, locks, outboxRepo, eventFactory, m, logger, config.DefaultReservationTTL)
	plannerService := application.NewPlannerService(
		inventoryRepo, warehouseCatalog, outboxRepo, eventFactory, m, logger, config.PlannerReadTimeout)
	transferService := application.NewTransferService(inventoryRepo, locks, m, logger)

	// Background expiry sweeper
	sweeper := application.NewSweeper(reservationRepo, reservationService, logger, m, &application.SweeperConfig{
		Interval:  config.SweepInterval,
		BatchSize: config.SweepBatchSize,
	})
	if err := sweeper.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start expiry sweeper")
		os.Exit(1)
	}
	defer sweeper.Stop()
	logger.Info("Expiry sweeper started", "interval", config.SweepInterval, "batchSize", config.SweepBatchSize)

	// Gin router with the standard middleware stack
	router := gin.New()
	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)

	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	api := router.Group("/api/v1")
	{
		api.POST("/allocation/plan", planHandler(plannerService, logger))

		api.POST("/stock/transfer", transferHandler(transferService, logger))
		api.GET("/stock/transfers/:transferId/movements", transferMovementsHandler(ledgerService, logger))

		api.POST("/stock/:productId/:warehouseId/reserve", reserveHandler(reservationService, logger))
		api.GET("/stock/:productId/:warehouseId/available", getAvailableHandler(ledgerService, logger))
		api.POST("/stock/:productId/:warehouseId/movements", applyMovementHandler(ledgerService, logger))
		api.GET("/stock/:productId/:warehouseId/movements", movementHistoryHandler(ledgerService, logger))

		api.POST("/reservations/:reservationId/release", releaseHandler(reservationService, logger))
		api.POST("/reservations/:reservationId/extend", extendHandler(reservationService, logger))
		api.GET("/reservations/:reservationId", getReservationHandler(reservationService, logger))
	}

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr string
	MongoDB    *mongodb.Config
	Kafka      *kafka.Config

	CatalogURL     string
	CatalogTimeout time.Duration

	DefaultReservationTTL time.Duration
	PlannerReadTimeout    time.Duration

	SweepInterval  time.Duration
	SweepBatchSize int
}

func loadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "stocklane"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ConsumerGroup: serviceName,
			ClientID:      serviceName,
			BatchSize:     100,
			BatchTimeout:  10 * time.Millisecond,
			RequiredAcks:  -1,
		},
		CatalogURL:            getEnv("CATALOG_URL", "http://localhost:8090"),
		CatalogTimeout:        getDurationEnv("CATALOG_TIMEOUT", 5*time.Second),
		DefaultReservationTTL: getDurationEnv("RESERVATION_DEFAULT_TTL", 15*time.Minute),
		PlannerReadTimeout:    getDurationEnv("PLANNER_READ_TIMEOUT", 2*time.Second),
		SweepInterval:         getDurationEnv("SWEEP_INTERVAL", 10*time.Second),
		SweepBatchSize:        getIntEnv("SWEEP_BATCH_SIZE", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
