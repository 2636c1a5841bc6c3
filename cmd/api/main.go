package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/application"
	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	kafkaAdapter "github.com/wms-platform/pharmacy-inventory/internal/infrastructure/kafka"
	"github.com/wms-platform/pharmacy-inventory/internal/infrastructure/memory"
	mongoRepo "github.com/wms-platform/pharmacy-inventory/internal/infrastructure/mongodb"
	"github.com/wms-platform/pharmacy-inventory/internal/infrastructure/phpapi"
	"github.com/wms-platform/pharmacy-inventory/pkg/cloudevents"
	"github.com/wms-platform/pharmacy-inventory/pkg/kafka"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
	"github.com/wms-platform/pharmacy-inventory/pkg/mongodb"
	"github.com/wms-platform/pharmacy-inventory/pkg/tracing"
)

const serviceName = "pharmacy-inventory"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting pharmacy-inventory API")

	config, err := loadConfig()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "false") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", tracingConfig.Enabled, "endpoint", tracingConfig.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	// PHP backend
	phpClient := phpapi.NewClient(config.PHPAPI, logger, m)
	logger.Info("PHP API client initialized", "baseUrl", config.PHPAPI.BaseURL, "timeout", config.PHPAPI.Timeout)

	products := application.NewController(application.ControllerConfig[domain.Product]{
		Name:    application.ResourceProducts,
		Fetch:   phpClient.ListProducts,
		Key:     func(p domain.Product) string { return p.ID },
		Timeout: config.PHPAPI.Timeout,
	}, logger, m)
	orders := application.NewController(application.ControllerConfig[domain.PurchaseOrderHeader]{
		Name:    application.ResourcePurchaseOrders,
		Fetch:   phpClient.ListPurchaseOrders,
		Key:     func(h domain.PurchaseOrderHeader) string { return h.ID },
		Timeout: config.PHPAPI.Timeout,
	}, logger, m)

	// Dismissal store
	var dismissals domain.DismissalRepository
	ready := func() error { return nil }
	if config.MongoDB != nil {
		mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to MongoDB")
			os.Exit(1)
		}
		defer mongoClient.Close(context.Background())

		repo := mongoRepo.NewDismissalRepository(mongoClient.Database(), m)
		if err := repo.EnsureIndexes(ctx, config.DismissalTTL); err != nil {
			logger.WithError(err).Warn("Failed to create dismissal indexes")
		}
		dismissals = repo
		ready = func() error { return mongoClient.HealthCheck(ctx) }
		logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)
	} else {
		dismissals = memory.NewDismissalRepository()
		logger.Info("Dismissals kept in memory")
	}

	// Kafka
	var publisher application.EventPublisher = kafkaAdapter.NopPublisher{}
	var feed application.ChangeFeed
	if config.Kafka != nil {
		producer := kafka.NewProducer(config.Kafka)
		defer producer.Close()
		instrumentedProducer := kafka.NewInstrumentedProducer(producer, m, logger)
		eventFactory := cloudevents.NewEventFactory(cloudevents.SourceInventoryService)
		publisher = kafkaAdapter.NewEventPublisher(instrumentedProducer, eventFactory)
		feed = kafkaAdapter.NewChangeFeed(config.Kafka, logger, m)
		logger.Info("Kafka initialized", "brokers", config.Kafka.Brokers)
	} else {
		logger.Info("Kafka not configured, refreshing by polling")
	}

	// Application services
	sessions := application.NewSessionRegistry(dismissals, logger)
	svc := &services{
		orders:      application.NewPurchaseOrderService(orders, phpClient, logger),
		products:    application.NewProductService(products, config.AlertRules, logger),
		alerts:      application.NewAlertService(products, sessions, config.AlertRules, publisher, logger, m),
		adjustments: application.NewStockAdjustmentService(phpClient, products, publisher, logger),
		metrics:     m,
		ready:       ready,
		corsOrigins: config.CORSOrigins,
	}
	svc.reports = application.NewReportService(products, orders, svc.orders, config.AlertRules, logger)
	svc.coordinator = application.NewRefreshCoordinator(feed, config.Refresh, logger, products, orders)

	if err := svc.coordinator.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start refresh coordinator")
		os.Exit(1)
	}
	defer svc.coordinator.Stop()

	go evictIdleSessions(ctx, sessions, config.SessionIdleTTL)

	router := setupRouter(svc, logger)

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// evictIdleSessions drops idle alert sessions until ctx is cancelled
func evictIdleSessions(ctx context.Context, sessions *application.SessionRegistry, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.EvictIdle(ctx, maxIdle)
		}
	}
}
