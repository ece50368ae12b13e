package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/batching-service/pkg/errors"
	"github.com/wms-platform/batching-service/pkg/kafka"
	"github.com/wms-platform/batching-service/pkg/logging"
	"github.com/wms-platform/batching-service/pkg/metrics"
	"github.com/wms-platform/batching-service/pkg/middleware"
	"github.com/wms-platform/batching-service/pkg/mongodb"
	"github.com/wms-platform/batching-service/pkg/outbox"

	"github.com/wms-platform/batching-service/internal/application"
	"github.com/wms-platform/batching-service/internal/domain"
	mongoRepo "github.com/wms-platform/batching-service/internal/infrastructure/mongodb"
)

const serviceName = "batching-service"

func main() {
	// Setup enhanced logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting batching-service API")

	// Load configuration
	config := loadConfig()
	ctx := context.Background()

	// Initialize Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	// Initialize MongoDB with instrumentation and a circuit breaker
	mongoClient, err := mongodb.NewProductionClient(ctx, config.MongoDB, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize Kafka producer with instrumentation and a circuit breaker
	kafkaProducer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer kafkaProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Initialize repositories and stores
	batchRepo := mongoRepo.NewBatchRepository(mongoClient.Database())
	warehouseStore := mongoRepo.NewWarehouseStore(mongoClient.Database())
	trailerRepo := mongoRepo.NewTrailerRepository(mongoClient.Database())
	orderStore := mongoRepo.NewSaleOrderStore(mongoClient.Database())
	txRunner := mongoRepo.NewTransactionRunner(mongoClient.Client())

	// Initialize and start outbox publisher
	outboxPublisher := outbox.NewPublisher(
		batchRepo.GetOutboxRepository(),
		kafkaProducer,
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

	// Initialize application services
	batchService := application.NewBatchApplicationService(batchRepo, warehouseStore, txRunner, logger)
	trailerService := application.NewTrailerApplicationService(trailerRepo, warehouseStore, logger)
	orderService := application.NewSaleOrderApplicationService(orderStore, logger)

	// Setup Gin router with middleware
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)

	// Add metrics middleware
	router.Use(middleware.MetricsMiddleware(m))

	// Handle 404 and 405 errors
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	business := middleware.NewBusinessMetrics(m)

	// API v1 routes
	api := router.Group("/api/v1/batches")
	{
		// Static routes before :batchId wildcard
		api.GET("/single", getSingleBatchHandler(batchService, logger))
		api.POST("", createBatchHandler(batchService, logger, business))
		api.POST("/reconcile", reconcileBatchesHandler(batchService, logger, business))
		api.POST("/unassign", unassignBatchesHandler(batchService, logger))
		// Wildcard routes after static routes
		api.GET("/:batchId/next-task", getNextTaskHandler(batchService, logger, business))
		api.POST("/:batchId/unpickable", markUnpickableHandler(batchService, logger, business))
		api.POST("/:batchId/drop-off", dropOffHandler(batchService, logger, business))
		api.GET("/:batchId/drop-off/valid", isValidDestinationHandler(batchService, logger))
	}

	pickings := router.Group("/api/v1/pickings")
	{
		pickings.POST("/:pickingId/trailer-info", createTrailerInfoHandler(trailerService, logger))
		pickings.GET("/:pickingId/trailer-info", getTrailerInfoHandler(trailerService, logger))
	}

	orders := router.Group("/api/v1/orders")
	{
		orders.GET("/shortages", computeShortagesHandler(orderService, logger))
		orders.POST("/shortages/cancel", cancelUnfulfillableHandler(orderService, logger))
		orders.POST("/check-delivered", checkDeliveredHandler(orderService, logger))
	}

	// Start server
	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr string
	MongoDB    *mongodb.Config
	Kafka      *kafka.Config
}

func loadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8010"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "batching_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
			ReplicaSet:     getEnv("MONGODB_REPLICA_SET", ""),
		},
		Kafka: &kafka.Config{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ConsumerGroup: "batching-service",
			ClientID:      "batching-service",
			BatchSize:     100,
			BatchTimeout:  10 * time.Millisecond,
			RequiredAcks:  -1,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// callerID identifies the operator making the request
func callerID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

// mapServiceError converts domain errors into API responses. Validation
// failures map to 400, state conflicts to 409 and unresolvable
// references to 400 or 404 depending on what could not be found.
func mapServiceError(err error) *errors.AppError {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var (
		invalidUser  *domain.InvalidUserError
		inconsistent *domain.InconsistentStateError
		incomplete   *domain.IncompleteWorkError
		wrongState   *domain.WrongStateError
		missingLoc   *domain.MissingLocationError
		ambiguous    *domain.AmbiguousPackageError
		noLines      *domain.NoMatchingMoveLinesError
		notInBatch   *domain.NotInBatchError
		completed    *domain.AlreadyCompletedError
		unknownLoc   *domain.UnknownLocationError
	)

	switch {
	case stderrors.As(err, &invalidUser):
		return errors.NewAppError("INVALID_USER", invalidUser.Error(), http.StatusBadRequest)
	case stderrors.As(err, &inconsistent):
		return errors.NewAppError("INCONSISTENT_STATE", inconsistent.Error(), http.StatusConflict)
	case stderrors.As(err, &incomplete):
		return errors.NewAppError("INCOMPLETE_WORK", incomplete.Error(), http.StatusConflict).
			WithDetail("pickings", strings.Join(incomplete.PickingNames, ", "))
	case stderrors.As(err, &wrongState):
		return errors.NewAppError("WRONG_STATE", wrongState.Error(), http.StatusConflict)
	case stderrors.As(err, &missingLoc):
		return errors.NewAppError("MISSING_LOCATION", missingLoc.Error(), http.StatusBadRequest)
	case stderrors.As(err, &ambiguous):
		return errors.NewAppError("AMBIGUOUS_PACKAGE", ambiguous.Error(), http.StatusBadRequest)
	case stderrors.As(err, &noLines):
		return errors.NewAppError("NO_MATCHING_MOVE_LINES", noLines.Error(), http.StatusNotFound)
	case stderrors.As(err, &notInBatch):
		return errors.NewAppError("NOT_IN_BATCH", notInBatch.Error(), http.StatusConflict)
	case stderrors.As(err, &completed):
		return errors.NewAppError("ALREADY_COMPLETED", completed.Error(), http.StatusConflict)
	case stderrors.As(err, &unknownLoc):
		return errors.NewAppError("UNKNOWN_LOCATION", unknownLoc.Error(), http.StatusBadRequest)
	case stderrors.Is(err, domain.ErrTrailerExists):
		return errors.ErrConflict("trailer info already exists for this picking")
	}

	return errors.ErrInternal("").Wrap(err)
}

// HTTP Handlers

func getSingleBatchHandler(service *application.BatchApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetSingleBatchQuery{CallerID: callerID(c)}
		if userID := c.Query("userId"); userID != "" {
			query.UserID = &userID
		}

		batch, err := service.GetSingleBatch(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		if batch == nil {
			c.Status(http.StatusNoContent)
			return
		}

		c.JSON(http.StatusOK, batch)
	}
}

func createBatchHandler(service *application.BatchApplicationService, logger *logging.Logger, business *middleware.BusinessMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			UserID     *string `json:"userId"`
			TypeID     string  `json:"typeId"`
			Priorities []int   `json:"priorities"`
		}

		// An empty body is a plain self-allocation
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		cmd := application.CreateBatchCommand{
			CallerID:   callerID(c),
			UserID:     req.UserID,
			TypeID:     req.TypeID,
			Priorities: req.Priorities,
		}

		batch, err := service.CreateBatch(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		if batch == nil {
			c.Status(http.StatusNoContent)
			return
		}

		business.RecordBatchCreated(req.TypeID)
		c.JSON(http.StatusCreated, batch)
	}
}

func reconcileBatchesHandler(service *application.BatchApplicationService, logger *logging.Logger, business *middleware.BusinessMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			UserID   *string  `json:"userId"`
			BatchIDs []string `json:"batchIds"`
			Strict   bool     `json:"strict"`
		}

		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		cmd := application.ReconcileBatchesCommand{
			CallerID: callerID(c),
			UserID:   req.UserID,
			BatchIDs: req.BatchIDs,
			Strict:   req.Strict,
		}

		batches, err := service.ReconcileBatches(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		for _, batch := range batches {
			if batch.State == "done" {
				business.RecordBatchCompleted(batch.State)
			}
		}

		c.JSON(http.StatusOK, batches)
	}
}

func unassignBatchesHandler(service *application.BatchApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			UserID *string `json:"userId"`
		}

		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		cmd := application.UnassignUserBatchesCommand{
			CallerID: callerID(c),
			UserID:   req.UserID,
		}

		if err := service.UnassignUserBatches(c.Request.Context(), cmd); err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func getNextTaskHandler(service *application.BatchApplicationService, logger *logging.Logger, business *middleware.BusinessMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.GetNextTaskQuery{
			BatchID: c.Param("batchId"),
		}
		if skipped := c.Query("skippedProductIds"); skipped != "" {
			query.SkippedProductIDs = strings.Split(skipped, ",")
		}

		task, err := service.GetNextTask(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		if !task.TasksPicked {
			policy := "product"
			if task.PackageID != "" {
				policy = "package"
			}
			business.RecordTaskPlanned(policy)
		}

		c.JSON(http.StatusOK, task)
	}
}

func markUnpickableHandler(service *application.BatchApplicationService, logger *logging.Logger, business *middleware.BusinessMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason      string `json:"reason" binding:"required"`
			ProductRef  string `json:"productRef" binding:"required_without=PackageName"`
			LocationRef string `json:"locationRef"`
			PackageName string `json:"packageName" binding:"required_without=ProductRef"`
			LotID       string `json:"lotId"`
			TypeID      string `json:"typeId"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.MarkUnpickableCommand{
			BatchID:     c.Param("batchId"),
			Reason:      req.Reason,
			ProductRef:  req.ProductRef,
			LocationRef: req.LocationRef,
			PackageName: req.PackageName,
			LotID:       req.LotID,
			TypeID:      req.TypeID,
		}

		batch, err := service.MarkUnpickable(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		business.RecordUnpickableReported(req.ProductRef != "")
		c.JSON(http.StatusOK, batch)
	}
}

func dropOffHandler(service *application.BatchApplicationService, logger *logging.Logger, business *middleware.BusinessMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ContinueBatch bool   `json:"continueBatch"`
			LocationRef   string `json:"locationRef"`
		}

		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		cmd := application.DropOffCommand{
			BatchID:       c.Param("batchId"),
			ContinueBatch: req.ContinueBatch,
			LocationRef:   req.LocationRef,
		}

		batch, err := service.DropOff(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		business.RecordDropOffCompleted(req.ContinueBatch)
		c.JSON(http.StatusOK, batch)
	}
}

func isValidDestinationHandler(service *application.BatchApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.IsValidDestinationQuery{
			BatchID:     c.Param("batchId"),
			LocationRef: c.Query("location"),
		}

		valid, err := service.IsValidDestination(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"valid": valid})
	}
}

func createTrailerInfoHandler(service *application.TrailerApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Number     int    `json:"number"`
			UnitID     string `json:"unitId"`
			License    string `json:"license"`
			DriverName string `json:"driverName"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.CreateTrailerInfoCommand{
			PickingID:  c.Param("pickingId"),
			Number:     req.Number,
			UnitID:     req.UnitID,
			License:    req.License,
			DriverName: req.DriverName,
		}

		info, err := service.CreateTrailerInfo(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		c.JSON(http.StatusCreated, info)
	}
}

func getTrailerInfoHandler(service *application.TrailerApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		info, err := service.GetTrailerInfo(c.Request.Context(), c.Param("pickingId"))
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		c.JSON(http.StatusOK, info)
	}
}

func computeShortagesHandler(service *application.SaleOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		report, err := service.ComputeShortages(c.Request.Context())
		if err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		c.JSON(http.StatusOK, report)
	}
}

func cancelUnfulfillableHandler(service *application.SaleOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			LineIDs []string `json:"lineIds"`
		}

		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		cmd := application.CancelUnfulfillableCommand{LineIDs: req.LineIDs}

		if err := service.CancelUnfulfillable(c.Request.Context(), cmd); err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func checkDeliveredHandler(service *application.SaleOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			OrderIDs []string `json:"orderIds" binding:"required"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cmd := application.CheckDeliveredCommand{OrderIDs: req.OrderIDs}

		if err := service.CheckDelivered(c.Request.Context(), cmd); err != nil {
			responder.RespondWithAppError(mapServiceError(err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}
