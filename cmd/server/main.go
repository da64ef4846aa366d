package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docgen/backend/internal/application/generation"
	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/infrastructure/config"
	"github.com/docgen/backend/internal/infrastructure/logger"
	"github.com/docgen/backend/internal/infrastructure/persistence"
	quotainfra "github.com/docgen/backend/internal/infrastructure/quota"
	"github.com/docgen/backend/internal/infrastructure/rendering"
	"github.com/docgen/backend/internal/infrastructure/scheduler"
	"github.com/docgen/backend/internal/infrastructure/storage"
	"github.com/docgen/backend/internal/infrastructure/telemetry"
	"github.com/docgen/backend/internal/infrastructure/templates"
	"github.com/docgen/backend/internal/interfaces/http/handler"
	"github.com/docgen/backend/internal/interfaces/http/middleware"
	"github.com/docgen/backend/internal/interfaces/http/router"
)

// version is stamped at build time with -ldflags "-X main.version=..."
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
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting document service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.Profiling.Enabled,
		ServerAddress:     cfg.Telemetry.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Telemetry.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Telemetry.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tp.EnableSpanProfiles()
	}

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		OTLPEnabled:       cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		Insecure:          cfg.Telemetry.Insecure,
		PrometheusEnabled: cfg.Metrics.Enabled,
		Namespace:         cfg.App.Name,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		if err := meters.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer func() {
		if err := logs.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		otelCore := logs.Core(cfg.Telemetry.ServiceName, level)
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
	}

	metrics, err := telemetry.NewGenerationMetrics(meters.Meter("generation"))
	if err != nil {
		log.Fatal("Failed to create generation metrics", zap.Error(err))
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version)

	var db *persistence.Database
	if cfg.NeedsDatabase() {
		db, err = persistence.NewDatabase(&cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		if cfg.Database.Driver == "sqlite" {
			if err := db.AutoMigrate(); err != nil {
				log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
			}
		}
		dbSystem := "postgresql"
		if cfg.Database.Driver == "sqlite" {
			dbSystem = "sqlite"
		}
		if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
			DBSystem:   dbSystem,
		}, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
		systemHandler.AddCheck("database", func(context.Context) error { return db.Ping() })
		log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = redisClient.Close()
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		systemHandler.AddCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	ledger, err := newLedger(cfg, db, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize quota ledger", zap.Error(err))
	}
	period, err := quota.ParsePeriod(cfg.Quota.Period)
	if err != nil {
		log.Fatal("Invalid quota period", zap.Error(err))
	}

	store, err := newArtifactStore(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}

	var templateRepo document.TemplateRepository
	if cfg.Templates.UseDatabase {
		templateRepo = persistence.NewGormTemplateRepository(db.DB)
	}
	registry, err := templates.NewRegistry(ctx, templates.Config{ExternalDir: cfg.Templates.Dir}, templateRepo, log)
	if err != nil {
		log.Fatal("Failed to load templates", zap.Error(err))
	}

	var pdfEngine rendering.PDFEngine
	if cfg.Render.PDFEngine == "chromedp" {
		chrome := rendering.NewChromeEngine(rendering.ChromeConfig{
			RemoteURL: cfg.Render.ChromeRemoteURL,
			NoSandbox: cfg.Render.ChromeNoSandbox,
			Timeout:   cfg.Render.Timeout,
			Logger:    log,
		})
		defer func() {
			_ = chrome.Close()
		}()
		pdfEngine = chrome
	}
	renderers := []document.Renderer{
		rendering.NewPaginatedRenderer(pdfEngine),
		rendering.NewMatrixRenderer(rendering.MatrixConfig{
			ErrorCorrection: cfg.Render.QRErrorCorrection,
			MaxVersion:      cfg.Render.QRMaxVersion,
		}),
	}

	genConfig := generation.DefaultConfig()
	genConfig.Period = period
	genConfig.Rounding = document.RoundingMode(cfg.Render.Rounding)
	genConfig.RenderTimeout = cfg.Render.Timeout
	orchestrator := generation.NewOrchestrator(
		registry,
		ledger,
		quota.PlanLimits{quota.TierFree: cfg.Quota.FreeLimit, quota.TierPremium: cfg.Quota.PremiumLimit},
		store,
		renderers,
		genConfig,
		log,
		generation.WithMetrics(metrics),
	)

	// Background jobs
	sweeper := scheduler.NewArtifactSweeper(store, metrics, log, scheduler.ArtifactSweeperConfig{
		Enabled:   cfg.Artifacts.SweepEnabled,
		Interval:  cfg.Artifacts.SweepInterval,
		BatchSize: cfg.Artifacts.SweepBatch,
	})
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start artifact sweeper", zap.Error(err))
	}
	refresher := scheduler.NewTemplateRefresher(registry, cfg.Templates.RefreshInterval, log)
	if err := refresher.Start(ctx); err != nil {
		log.Fatal("Failed to start template refresher", zap.Error(err))
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSOrigins
	}
	tracingConfig := middleware.DefaultTracingConfig()
	tracingConfig.Enabled = cfg.Telemetry.Enabled
	tracingConfig.ServiceName = cfg.Telemetry.ServiceName

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.TracingWithConfig(tracingConfig),
		middleware.SpanErrorMarker(),
	)
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		Meter:     meters.Meter("http.server"),
		SkipPaths: []string{cfg.Metrics.Path, "/health/live", "/health/ready"},
	}))

	apiMiddleware := []gin.HandlerFunc{middleware.Requester(middleware.RequesterConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.JWTIssuer,
		Logger: log,
	})}
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
		go limiter.Run(ctx)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	r := router.NewRouter(engine, router.WithAPIMiddleware(apiMiddleware...))
	r.RegisterRoot(systemHandler)
	r.Register(handler.NewGenerationHandler(orchestrator))
	r.Setup()
	if h := meters.Handler(); h != nil {
		engine.GET(cfg.Metrics.Path, gin.WrapH(h))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := refresher.Stop(shutdownCtx); err != nil {
		log.Warn("Template refresher did not stop cleanly", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Warn("Artifact sweeper did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newLedger selects the quota ledger backend
func newLedger(cfg *config.Config, db *persistence.Database, client *redis.Client) (quota.Ledger, error) {
	switch cfg.Quota.Backend {
	case "memory":
		return quotainfra.NewInMemoryLedger(), nil
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres ledger requires a database")
		}
		return persistence.NewGormQuotaLedger(db.DB), nil
	case "redis":
		if client == nil {
			return nil, errors.New("redis ledger requires a redis client")
		}
		return quotainfra.NewRedisLedger(client, quotainfra.RedisLedgerConfig{KeyPrefix: cfg.Redis.KeyPrefix}), nil
	}
	return nil, fmt.Errorf("unknown quota backend %q", cfg.Quota.Backend)
}

// newArtifactStore wires the blob backend and the metadata repository
func newArtifactStore(ctx context.Context, cfg *config.Config, db *persistence.Database, log *zap.Logger) (*document.ArtifactStore, error) {
	var blobs document.BlobStore
	switch cfg.Storage.Backend {
	case "memory":
		blobs = storage.NewMemoryBlobStore(log)
	case "s3":
		s3Store, err := storage.NewS3BlobStore(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		blobs = s3Store
	default:
		fileStore, err := storage.NewFileBlobStore(cfg.Storage.BasePath, log)
		if err != nil {
			return nil, err
		}
		blobs = fileStore
	}

	var repo document.ArtifactRepository
	if cfg.Artifacts.Metadata == "memory" {
		repo = storage.NewInMemoryArtifactRepository()
	} else {
		if db == nil {
			return nil, errors.New("artifact metadata requires a database")
		}
		repo = persistence.NewGormArtifactRepository(db.DB)
	}

	return document.NewArtifactStore(repo, blobs, document.ArtifactStoreConfig{
		DefaultTTL: cfg.Artifacts.DefaultTTL,
		MaxTTL:     cfg.Artifacts.MaxTTL,
	}), nil
}
