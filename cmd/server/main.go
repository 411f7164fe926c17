package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ledgerapp "github.com/pms/billing/internal/application/ledger"
	meteringapp "github.com/pms/billing/internal/application/metering"
	paymentapp "github.com/pms/billing/internal/application/payment"
	recyclebinapp "github.com/pms/billing/internal/application/recyclebin"
	"github.com/pms/billing/internal/domain/shared"
	"github.com/pms/billing/internal/infrastructure/backend"
	"github.com/pms/billing/internal/infrastructure/cache"
	"github.com/pms/billing/internal/infrastructure/config"
	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/infrastructure/telemetry"
	"github.com/pms/billing/internal/interfaces/http/handler"
	"github.com/pms/billing/internal/interfaces/http/middleware"
	"github.com/pms/billing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

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

	log.Info("Starting PMS billing engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	// Initialize tracing
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	// Ship logs to the collector alongside the local output
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := lp.Shutdown(context.Background()); err != nil {
			log.Warn("Failed to shut down logger provider", zap.Error(err))
		}
	}()
	log = lp.Bridge(log, log.Level())

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		_ = profiler.Stop()
	}()

	// Initialize metrics
	metricsCfg := telemetry.DefaultMetricsConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	if cfg.Metrics.Path != "" {
		metricsCfg.Path = cfg.Metrics.Path
	}
	metrics := telemetry.NewMetrics(metricsCfg)

	// In-flight guard, shared across replicas when Redis is enabled
	guard, err := cache.NewGuardFactory(cfg.Redis, cache.WithLogger(log)).CreateGuard()
	if err != nil {
		log.Fatal("Failed to create in-flight guard", zap.Error(err))
	}
	defer func() {
		if err := guard.Close(); err != nil {
			log.Warn("Failed to close in-flight guard", zap.Error(err))
		}
	}()

	// Backend client
	client, err := backend.NewClient(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        cfg.Backend.Timeout,
		RateLimitRPS:   cfg.Backend.RateLimitRPS,
		RateLimitBurst: cfg.Backend.RateLimitBurst,
		UserAgent:      cfg.App.Name + "/" + cfg.App.Version,
	}, backend.WithLogger(log), backend.WithMetrics(metrics))
	if err != nil {
		log.Fatal("Failed to create backend client", zap.Error(err))
	}

	inflight := shared.InFlightConfig{
		TTL:     cfg.Billing.InFlightTTL,
		Enabled: cfg.Billing.InFlightEnabled,
	}

	// Application services
	readingService := meteringapp.NewReadingService(client.Readings(), guard, inflight, metrics, log)
	ledgerService := ledgerapp.NewLedgerService(client.Bills(), guard, inflight, metrics, log)
	allocationService := paymentapp.NewAllocationService(client.Bills(), client.Payments(), guard, inflight, metrics, log)
	recycleBinService := recyclebinapp.NewRecycleBinService(client.Trash(), guard, inflight, cfg.Billing.BulkConcurrency, metrics, log)

	// Handlers
	meterHandler := handler.NewMeterHandler(readingService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	paymentHandler := handler.NewPaymentHandler(allocationService)
	recycleBinHandler := handler.NewRecycleBinHandler(recycleBinService)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, cfg.Backend.BaseURL)

	middleware.SetupValidator()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Failed to set trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	// Global middleware
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(corsCfg))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		Metrics:   metrics,
		Enabled:   cfg.Metrics.Enabled,
		SkipPaths: []string{metrics.Path(), "/health"},
	}))
	engine.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))

	// Health and scrape endpoints live outside the versioned API
	engine.GET("/health", healthHandler(cfg))
	if cfg.Metrics.Enabled {
		engine.GET(metrics.Path(), gin.WrapH(metrics.Handler()))
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	if cfg.HTTP.RateLimitEnabled {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)))
	}
	r.Use(middleware.BearerToken(middleware.BearerConfig{
		Required:         true,
		SkipPathPrefixes: []string{"/api/v1/system"},
		Logger:           log,
	}))
	// After BearerToken so the operator is known
	r.Use(middleware.TracingAttributeInjector())
	r.Use(middleware.Profiling(middleware.ProfilingConfig{Enabled: cfg.Profiling.Enabled}))

	meterRoutes := router.NewDomainGroup("meters", "/units")
	meterRoutes.GET("/:unit_id/meters/:utility", meterHandler.History)
	meterRoutes.POST("/:unit_id/meters/:utility", meterHandler.Record)

	ledgerRoutes := router.NewDomainGroup("ledger", "/ledger")
	ledgerRoutes.GET("", ledgerHandler.List)
	ledgerRoutes.POST("/items", ledgerHandler.Add)
	ledgerRoutes.PATCH("/items/:id", ledgerHandler.Patch)
	ledgerRoutes.DELETE("/items/:id", ledgerHandler.Delete)

	paymentRoutes := router.NewDomainGroup("payments", "/payments")
	paymentRoutes.GET("/methods", paymentHandler.Methods)
	paymentRoutes.POST("/quote", paymentHandler.Quote)
	paymentRoutes.POST("", paymentHandler.Allocate)

	recycleBinRoutes := router.NewDomainGroup("recycle-bin", "/recycle-bin")
	recycleBinRoutes.GET("/:kind", recycleBinHandler.List)
	recycleBinRoutes.POST("/:kind/:id/restore", recycleBinHandler.Restore)
	recycleBinRoutes.POST("/:kind/:id/delete", recycleBinHandler.Delete)
	recycleBinRoutes.POST("/:kind/bulk", recycleBinHandler.Bulk)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(meterRoutes)
	r.Register(ledgerRoutes)
	r.Register(paymentRoutes)
	r.Register(recycleBinRoutes)
	r.Register(systemRoutes)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           cfg.App.Addr(),
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

// healthHandler reports liveness only; the billing backend is not called
func healthHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"time":    time.Now().Format(time.RFC3339),
			"version": cfg.App.Version,
		})
	}
}
