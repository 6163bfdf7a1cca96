package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appinventory "github.com/oms/backend/internal/application/inventory"
	appsync "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/infrastructure/auth"
	"github.com/oms/backend/internal/infrastructure/cache"
	"github.com/oms/backend/internal/infrastructure/config"
	"github.com/oms/backend/internal/infrastructure/event"
	"github.com/oms/backend/internal/infrastructure/logger"
	"github.com/oms/backend/internal/infrastructure/persistence"
	"github.com/oms/backend/internal/infrastructure/scheduler"
	"github.com/oms/backend/internal/infrastructure/shipwire"
	"github.com/oms/backend/internal/infrastructure/storage"
	"github.com/oms/backend/internal/infrastructure/telemetry"
	"github.com/oms/backend/internal/interfaces/http/handler"
	"github.com/oms/backend/internal/interfaces/http/middleware"
	"github.com/oms/backend/internal/interfaces/http/router"
	"go.uber.org/zap"

	_ "github.com/oms/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			OMS Backend API
//	@version		1.0
//	@description	Order management backend bridging local order intake, the remote fulfillment provider and the lot-level inventory ledger.
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/oms/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

// version is stamped at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting OMS Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Initialize telemetry providers. Each one degrades to a no-op when
	// telemetry is disabled, so the wiring below is unconditional.
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logs provider", zap.Error(err))
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := logsProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logs provider", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Dual-output logger: stdout as configured plus OTLP when enabled
	if logsProvider.IsEnabled() {
		bridged, err := telemetry.CreateBridgedLoggerFromConfig(&logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		}, logsProvider, cfg.Telemetry.ServiceName)
		if err != nil {
			log.Warn("Log bridging unavailable, keeping stdout-only logger", zap.Error(err))
		} else {
			log = bridged
		}
	}

	// Continuous profiling is best effort; the server runs without it
	profilerCfg := telemetry.DefaultProfilerConfig(cfg.Telemetry.ServiceName, cfg.Telemetry.ProfilerEndpoint)
	profilerCfg.Enabled = cfg.Telemetry.ProfilerEnabled
	profiler, err := telemetry.NewProfiler(profilerCfg, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", zap.Error(err))
	}
	if profiler != nil {
		defer func() {
			if err := profiler.Stop(); err != nil {
				log.Error("Error stopping profiler", zap.Error(err))
			}
		}()
		if profiler.IsEnabled() {
			// Must happen after the profiler is started so spans carry
			// pprof labels
			if err := tracerProvider.EnableSpanProfiles(); err != nil {
				log.Warn("Span profiles integration unavailable", zap.Error(err))
			}
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Attach query tracing and pool metrics to the connection
	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracingCfg.DBSystem = cfg.Database.Driver
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		dbTracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.Enabled = cfg.Telemetry.Enabled
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, dbMetricsCfg, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(context.Background())
		defer dbMetrics.Stop()
	}

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	transactionRepo := persistence.NewGormInventoryTransactionRepository(db.DB)
	baselineRepo := persistence.NewGormBaselineRepository(db.DB)
	lotRepo := persistence.NewGormLotRepository(db.DB)
	trackingRepo := persistence.NewGormTrackingRepository(db.DB)
	duplicateAlertRepo := persistence.NewGormDuplicateAlertRepository(db.DB)
	mismatchAlertRepo := persistence.NewGormMismatchAlertRepository(db.DB)
	exclusionRepo := persistence.NewGormExclusionRepository(db.DB)
	taskStateRepo := persistence.NewGormTaskStateRepository(db.DB)
	taskRunRepo := persistence.NewGormTaskRunRepository(db.DB)

	// Operator authentication
	apiKeyVerifier := auth.NewAPIKeyVerifier(cfg.Auth)
	jwtService := auth.NewJWTService(cfg.JWT)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)

	// Idempotency store: Redis when reachable, in-memory otherwise
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Remote fulfillment provider client
	provider, err := shipwire.NewClient(&shipwire.Config{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		RequestsPerMinute: cfg.Provider.RequestsPerMinute,
		Burst:             cfg.Provider.Burst,
		Timeout:           cfg.Provider.CallTimeout,
		MaxAttempts:       cfg.Provider.MaxAttempts,
		InitialBackoff:    cfg.Provider.InitialBackoff,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure fulfillment provider client", zap.Error(err))
	}

	// Object storage backs both snapshot archival and order ingestion.
	// Without it the archiver stays nil and ingestion reads the stub
	// source, which hands over nothing.
	var ingestionSource appsync.IngestionSource = storage.NewStubIngestionSource()
	var archiver appsync.SnapshotArchiver
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3Store(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(context.Background()); err != nil {
			log.Warn("Object storage bucket check failed", zap.Error(err))
		}
		ingestionSource = s3Store
		archiver = s3Store
		log.Info("Object storage enabled", zap.String("bucket", s3Store.Bucket()))
	}

	// Initialize application services
	txScope := persistence.NewGormTransactionScope(db.DB)
	ledgerService := appinventory.NewLedgerService(transactionRepo, baselineRepo, mismatchAlertRepo)
	lotService := appinventory.NewLotService(lotRepo, eventBus)
	ingestionService := appsync.NewIngestionService(ingestionSource, orderRepo)
	uploadService := appsync.NewUploadService(provider, orderRepo, lotRepo, txScope, ledgerService)
	statusSyncService := appsync.NewStatusSyncService(provider, orderRepo, txScope, ledgerService, idempotencyStore)
	lotSyncService := appsync.NewLotSyncService(provider, trackingRepo, lotRepo, mismatchAlertRepo)
	duplicateResolver := appsync.NewDuplicateResolver(provider, lotRepo, duplicateAlertRepo, exclusionRepo)
	ledgerRefreshService := appsync.NewLedgerRefreshService(transactionRepo, baselineRepo, mismatchAlertRepo, archiver)

	// Sync pipeline metrics
	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:         meterProvider.Meter("oms.sync"),
		Logger:        log,
		QueueProvider: telemetry.NewGormQueueMetricsProvider(db.DB),
	})
	if err != nil {
		log.Warn("Sync metrics unavailable", zap.Error(err))
	} else {
		provider.SetMetrics(syncMetrics)
		uploadService.SetMetrics(syncMetrics)
		duplicateResolver.SetMetrics(syncMetrics)
		ledgerRefreshService.SetMetrics(syncMetrics)
		syncMetrics.StartPeriodicCollection(context.Background(), time.Minute)
		defer syncMetrics.Stop()
	}

	// A lot activation triggers an immediate resync of the SKU; the
	// idempotency wrapper keeps redelivered events from resyncing twice
	lotResyncHandler := event.NewIdempotentHandler(lotSyncService, idempotencyStore, log)
	eventBus.Subscribe(lotResyncHandler)
	log.Info("Event handlers registered",
		zap.Strings("lot_resync_events", lotResyncHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize the task scheduler. It is built even when disabled so
	// the task API can still report state and run manual triggers.
	schedulerCfg := scheduler.DefaultConfig()
	if cfg.Scheduler.TaskTimeout > 0 {
		schedulerCfg.TaskTimeout = cfg.Scheduler.TaskTimeout
	}
	if cfg.Scheduler.UnhealthyThreshold > 0 {
		schedulerCfg.UnhealthyThreshold = cfg.Scheduler.UnhealthyThreshold
	}
	setInterval := func(kind fulfillment.TaskKind, interval time.Duration) {
		if interval > 0 {
			schedulerCfg.Intervals[kind] = interval
		}
	}
	setInterval(fulfillment.TaskIngestion, cfg.Scheduler.IngestionInterval)
	setInterval(fulfillment.TaskUpload, cfg.Scheduler.UploadInterval)
	setInterval(fulfillment.TaskStatusSync, cfg.Scheduler.StatusSyncInterval)
	setInterval(fulfillment.TaskLotSync, cfg.Scheduler.LotSyncInterval)
	setInterval(fulfillment.TaskDuplicateScan, cfg.Scheduler.DuplicateScanInterval)
	setInterval(fulfillment.TaskLedgerRefresh, cfg.Scheduler.LedgerRefreshInterval)

	taskScheduler, err := scheduler.NewTaskScheduler(schedulerCfg, taskStateRepo, taskRunRepo, log)
	if err != nil {
		log.Fatal("Failed to create task scheduler", zap.Error(err))
	}
	if syncMetrics != nil {
		taskScheduler.SetMetrics(syncMetrics)
	}
	taskScheduler.Register(scheduler.NewIngestionExecutor(ingestionService, cfg.Ingestion.Window, cfg.Ingestion.Limit))
	taskScheduler.Register(scheduler.NewUploadExecutor(uploadService, appsync.DefaultUploadBatchSize))
	taskScheduler.Register(scheduler.NewStatusSyncExecutor(statusSyncService, cfg.Scheduler.StatusSyncWindow))
	taskScheduler.Register(scheduler.NewLotSyncExecutor(lotSyncService))
	taskScheduler.Register(scheduler.NewDuplicateScanExecutor(duplicateResolver, cfg.Scheduler.DuplicateScanWindow))
	taskScheduler.Register(scheduler.NewLedgerRefreshExecutor(ledgerRefreshService))

	if cfg.Scheduler.Enabled {
		if err := taskScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start task scheduler", zap.Error(err))
		}
		defer func() {
			if err := taskScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping task scheduler", zap.Error(err))
			}
		}()
		log.Info("Task scheduler started",
			zap.Duration("task_timeout", schedulerCfg.TaskTimeout),
			zap.Int("unhealthy_threshold", schedulerCfg.UnhealthyThreshold),
		)
	}

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(apiKeyVerifier, jwtService, log)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	lotHandler := handler.NewLotHandler(lotService)
	orderHandler := handler.NewOrderHandler(orderRepo)
	taskHandler := handler.NewTaskHandler(taskScheduler, taskStateRepo, taskRunRepo)
	alertHandler := handler.NewAlertHandler(duplicateResolver, duplicateAlertRepo, mismatchAlertRepo, exclusionRepo)
	systemHandler := handler.NewSystemHandler(db, taskScheduler, version)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. Tracing/Metrics/Profiling - Telemetry per request
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	if cfg.Telemetry.ProfilerEnabled {
		engine.Use(middleware.Profiling())
	}

	// Probe endpoints stay outside API versioning and authentication
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)
	engine.GET("/stats", systemHandler.Stats)

	// Swagger documentation endpoint, guarded by its own policy
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, middleware.JWTAuthMiddleware(jwtService)),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))
	r.Use(middleware.TracingAttributeInjector())

	// Auth domain: API key for bearer token exchange
	authRoutes := router.NewDomainGroup("auth", "/auth")
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		authRoutes.Use(middleware.AuthRateLimit(authLimiter))
		log.Info("Auth rate limiting enabled",
			zap.Int("requests", cfg.HTTP.AuthRateLimitRequests),
			zap.Duration("window", cfg.HTTP.AuthRateLimitWindow),
		)
	}
	authRoutes.POST("/token", authHandler.IssueToken)

	// Ledger domain: stock questions and manual ledger entries
	ledgerRoutes := router.NewDomainGroup("ledger", "/ledger")
	ledgerRoutes.GET("/:sku", ledgerHandler.Stock)
	ledgerRoutes.GET("/:sku/transactions", ledgerHandler.Transactions)
	ledgerRoutes.GET("/:sku/weekly-average", ledgerHandler.WeeklyAverage)
	ledgerRoutes.POST("/adjustments", ledgerHandler.CreateAdjustment)
	ledgerRoutes.POST("/baselines", ledgerHandler.CreateBaseline)

	// Lot domain: per-SKU lot inventory and activation
	lotRoutes := router.NewDomainGroup("lots", "/lots")
	lotRoutes.GET("/:sku", lotHandler.List)
	lotRoutes.GET("/:sku/active", lotHandler.Active)
	lotRoutes.POST("/:sku/activate", lotHandler.Activate)

	// Order domain: read model plus hold/release commands
	orderRoutes := router.NewDomainGroup("orders", "/orders")
	orderRoutes.GET("", orderHandler.List)
	orderRoutes.GET("/:number", orderHandler.GetByNumber)
	orderRoutes.POST("/:number/hold", orderHandler.Hold)
	orderRoutes.POST("/:number/release", orderHandler.Release)

	// Task domain: periodic task control surface
	taskRoutes := router.NewDomainGroup("tasks", "/tasks")
	taskRoutes.GET("", taskHandler.List)
	taskRoutes.POST("/:kind/enable", taskHandler.Enable)
	taskRoutes.POST("/:kind/disable", taskHandler.Disable)
	taskRoutes.POST("/:kind/trigger", taskHandler.Trigger)
	taskRoutes.GET("/:kind/runs", taskHandler.Runs)

	// Alert domain: duplicate and mismatch review
	alertRoutes := router.NewDomainGroup("alerts", "/alerts")
	alertRoutes.GET("", alertHandler.List)
	alertRoutes.POST("/:id/exclude", alertHandler.Exclude)
	alertRoutes.POST("/:id/confirm-deletion", alertHandler.ConfirmDeletion)
	alertRoutes.GET("/mismatches", alertHandler.Mismatches)
	alertRoutes.POST("/mismatches/:id/acknowledge", alertHandler.AcknowledgeMismatch)

	exclusionRoutes := router.NewDomainGroup("exclusions", "/exclusions")
	exclusionRoutes.GET("", alertHandler.Exclusions)

	// Register all domain groups
	r.Register(authRoutes).
		Register(ledgerRoutes).
		Register(lotRoutes).
		Register(orderRoutes).
		Register(taskRoutes).
		Register(alertRoutes).
		Register(exclusionRoutes)

	// Setup routes
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
