package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/batching-service/internal/activities"
	"github.com/wms-platform/batching-service/internal/application"
	mongoRepo "github.com/wms-platform/batching-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/batching-service/internal/workflows"
	"github.com/wms-platform/batching-service/pkg/kafka"
	"github.com/wms-platform/batching-service/pkg/logging"
	"github.com/wms-platform/batching-service/pkg/metrics"
	"github.com/wms-platform/batching-service/pkg/mongodb"
	"github.com/wms-platform/batching-service/pkg/temporal"
)

func main() {
	// Setup logger
	logConfig := logging.DefaultConfig("batching-worker")
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting batching-service worker")

	// Load configuration
	config := loadConfig()

	// Initialize metrics
	m := metrics.New(metrics.DefaultConfig("batching-worker"))

	// Initialize MongoDB
	ctx := context.Background()
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize repositories and services
	batchRepo := mongoRepo.NewBatchRepository(mongoClient.Database())
	warehouseStore := mongoRepo.NewWarehouseStore(mongoClient.Database())
	orderStore := mongoRepo.NewSaleOrderStore(mongoClient.Database())
	txRunner := mongoRepo.NewTransactionRunner(mongoClient.Client())

	batchService := application.NewBatchApplicationService(batchRepo, warehouseStore, txRunner, logger)
	orderService := application.NewSaleOrderApplicationService(orderStore, logger)

	// Initialize Temporal client
	temporalClient, err := temporal.NewClient(ctx, config.Temporal)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", config.Temporal.HostPort)

	// Create activities
	batchActivities := activities.NewBatchActivities(batchService, logger.Logger)
	shortageActivities := activities.NewShortageActivities(orderService, logger.Logger)

	// Create worker
	workerOpts := temporal.DefaultWorkerOptions(temporal.TaskQueues.Batching)
	w := temporalClient.NewWorker(workerOpts)

	// Register workflows
	w.RegisterWorkflow(workflows.BatchLifecycleWorkflow)
	w.RegisterWorkflow(workflows.ShortageSweepWorkflow)
	logger.Info("Registered workflows", "workflows", []string{
		temporal.WorkflowNames.BatchLifecycle,
		temporal.WorkflowNames.ShortageSweep,
	})

	// Register activities
	w.RegisterActivity(batchActivities.AllocateBatch)
	w.RegisterActivity(batchActivities.ReconcileBatch)
	w.RegisterActivity(batchActivities.UnassignBatches)
	w.RegisterActivity(shortageActivities.ScanShortages)
	w.RegisterActivity(shortageActivities.CancelShortageLines)
	w.RegisterActivity(shortageActivities.RefreshDeliveryStates)
	logger.Info("Registered activities")

	// Subscribe to warehouse picking events so order delivery states
	// follow picking completions without polling.
	consumer := kafka.NewInstrumentedConsumer(kafka.NewConsumer(config.Kafka, logger.Logger), m, logger)
	deliveryHandler := func(ctx context.Context, event *kafka.Event) error {
		var payload struct {
			OrderID string `json:"orderId"`
		}
		if err := event.DecodeData(&payload); err != nil {
			return err
		}
		if payload.OrderID == "" {
			return nil
		}
		return orderService.CheckDelivered(ctx, application.CheckDeliveredCommand{
			OrderIDs: []string{payload.OrderID},
		})
	}
	consumer.Subscribe(kafka.Topics.PickingEvents, "picking.completed", deliveryHandler)
	consumer.Subscribe(kafka.Topics.PickingEvents, "picking.cancelled", deliveryHandler)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go func() {
		if err := consumer.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
			logger.WithError(err).Error("Kafka consumer failed")
		}
	}()
	go consumer.ReportLag(consumerCtx, 30*time.Second)
	logger.Info("Kafka consumer started", "topic", kafka.Topics.PickingEvents)

	// Expose Prometheus metrics
	metricsAddr := getEnv("METRICS_ADDR", ":9011")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()
	logger.Info("Metrics server started", "addr", metricsAddr)

	// Start worker in background
	go func() {
		if err := w.Run(nil); err != nil {
			logger.WithError(err).Error("Worker failed")
			os.Exit(1)
		}
	}()
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Batching)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.WithError(err).Error("Failed to close Kafka consumer")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down metrics server")
	}
	w.Stop()
	logger.Info("Worker stopped")
}

// Config holds application configuration
type Config struct {
	MongoDB  *mongodb.Config
	Temporal *temporal.Config
	Kafka    *kafka.Config
}

func loadConfig() *Config {
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	kafkaConfig.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", "batching-worker")
	kafkaConfig.ClientID = "batching-worker"

	return &Config{
		Kafka: kafkaConfig,
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "batching_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
			ReplicaSet:     getEnv("MONGODB_REPLICA_SET", ""),
		},
		Temporal: &temporal.Config{
			HostPort:  getEnv("TEMPORAL_HOST", "localhost:7233"),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
			Identity:  "batching-worker",
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
