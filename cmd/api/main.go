package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"uplregistry/internal/application/services/upl"
	"uplregistry/internal/domain/upl/entities"
	"uplregistry/internal/domain/upl/repositories"
	"uplregistry/internal/infrastructure/archive"
	infracache "uplregistry/internal/infrastructure/cache"
	infrarepo "uplregistry/internal/infrastructure/repositories"
	"uplregistry/internal/interfaces/http/handlers"
	"uplregistry/internal/interfaces/http/middleware"
	"uplregistry/internal/interfaces/http/routes"
	"uplregistry/pkg/audit"
	"uplregistry/pkg/config"
	"uplregistry/pkg/cors"
	"uplregistry/pkg/database"
	"uplregistry/pkg/health"
	"uplregistry/pkg/logger"
	"uplregistry/pkg/ratelimit"
	"uplregistry/pkg/shutdown"
	"uplregistry/pkg/timeout"
	"uplregistry/pkg/tracing"
)

var (
	version   = "dev"
	buildTime = "unknown"
	commit    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	zlog.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Str("commit", commit).
		Msg("starting upl registry")

	activeStore, archiveStore, batchMover, db, closeStores, err := buildStores(cfg, zlog)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize document stores")
	}
	defer closeStores()

	var auditLogger audit.Logger
	if cfg.AuditEnabled {
		if db == nil {
			zlog.Warn().Msg("audit logging requires the postgres storage backend, skipping")
		} else {
			auditLogger = audit.NewPostgresLogger(db)
		}
	}

	var readCache upl.ReadCache
	var uplCache *infracache.UplCache
	if cfg.ReadCacheEnabled {
		c, err := infracache.NewUplCache(cfg.ReadCacheTTL, *zlog)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize read cache")
		}
		readCache = c
		uplCache = c
	}

	registry := upl.NewRegistry(activeStore, archiveStore, readCache, *zlog)
	if batchMover != nil {
		registry.SetBatchMover(batchMover)
	}
	if err := registry.Load(); err != nil {
		zlog.Fatal().Err(err).Msg("failed to load upl collections")
	}

	service := upl.NewService(registry, *zlog)

	var exporter *archive.S3Exporter
	if cfg.ArchiveExportEnabled() {
		exporter, err = archive.NewS3Exporter(context.Background(), archive.S3Config{
			Provider:  cfg.ArchiveStorageProvider,
			Bucket:    cfg.S3ArchiveBucket,
			Prefix:    cfg.S3ArchivePrefix,
			Region:    cfg.S3ArchiveRegion,
			Endpoint:  cfg.S3ArchiveEndpoint,
			AccessKey: cfg.S3ArchiveAccessKey,
			SecretKey: cfg.S3ArchiveSecretKey,
		}, *zlog)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize cold archive exporter")
		}
	}

	service.OnArchived(func(archived []*entities.Upl) {
		if auditLogger != nil {
			ctx := context.Background()
			for _, u := range archived {
				event := audit.NewMutationEvent(0, string(u.ID), "close_cart_archive")
				if err := auditLogger.LogEvent(ctx, event); err != nil {
					zlog.Error().Err(err).Str("upl_id", string(u.ID)).Msg("failed to record audit event")
				}
			}
		}
		if exporter != nil {
			go exporter.ExportBatch(context.Background(), archived)
		}
	})

	uplHandler := handlers.NewUplHandler(service, *zlog)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	tracerConfig := tracing.DefaultConfig()
	if cfg.IsProduction() {
		tracerConfig = tracing.ProductionConfig()
	}
	tracer, err := tracing.NewTracer(tracerConfig, zlog)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize tracer")
	}

	router := gin.New()
	router.Use(middleware.Recovery(*zlog))
	router.Use(middleware.Logger(*zlog))
	router.Use(middleware.RequestID())
	router.Use(tracing.Tracing(tracer, zlog))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowedOrigins = cfg.CORSOrigins
	corsConfig.AllowedMethods = cfg.CORSMethods
	corsConfig.AllowedHeaders = cfg.CORSHeaders
	router.Use(cors.NewMiddleware(corsConfig, zlog).Middleware())

	if cfg.RateLimitEnabled {
		limiter, err := ratelimit.New(rateLimitConfig(cfg), zlog)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize rate limiter")
		}
		router.Use(ratelimit.NewMiddleware(limiter, zlog).WithKeyFunc(ratelimit.KeyFuncIP).Middleware())
	}
	router.Use(timeout.Custom(cfg.RequestTimeout, zlog))

	api := router.Group("/api/v1")
	routes.SetupUplRoutes(api, uplHandler, *zlog)

	healthChecker := health.NewHealthChecker()
	healthHandler := health.NewHandler(healthChecker)
	router.GET("/health/live", healthHandler.LivenessHandler)
	router.GET("/health/ready", healthHandler.ReadinessHandler)

	if cfg.MetricsEnabled {
		router.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	server := &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zlog.Info().Str("addr", cfg.BindAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server failed")
		}
	}()

	shutdownManager := shutdown.NewManager(cfg.ShutdownTimeout)
	shutdownManager.RegisterHook(shutdown.NewGenericHook("health-checker", 0, func(ctx context.Context) error {
		healthChecker.SetShuttingDown(true)
		return nil
	}, zlog))
	shutdownManager.RegisterHook(shutdown.NewHTTPServerHook(server, zlog, 10))
	if uplCache != nil {
		shutdownManager.RegisterHook(shutdown.NewCacheHook(uplCache.Close, zlog, 20))
	}
	// Database connections are closed by the buildStores defer above,
	// after shutdownManager.Shutdown returns: pgxpool rejects a second Close.

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := shutdownManager.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("graceful shutdown completed with errors")
	}
	zlog.Info().Msg("server exited")
}

// buildStores returns the active/archive document stores, a BatchMover
// wired only when the selected backend supports one (Postgres), the
// underlying *database.Database (nil unless Postgres), and a cleanup
// func.
func buildStores(cfg *config.Config, zlog *zerolog.Logger) (repositories.Store, repositories.Store, repositories.BatchMover, *database.Database, func(), error) {
	switch config.StorageBackend(cfg.StorageBackend) {
	case config.StorageBackendPostgres:
		db, err := database.New(cfg.GetDatabaseConfig())
		if err != nil {
			return nil, nil, nil, nil, func() {}, fmt.Errorf("connecting to postgres: %w", err)
		}
		active := infrarepo.NewUplPostgresStore(db, "active_upls", *zlog)
		archived := infrarepo.NewUplPostgresStore(db, "archived_upls", *zlog)
		mover := infrarepo.NewUplPostgresTxMover(db, active, archived, *zlog)
		return active, archived, mover, db, func() { db.Close() }, nil
	default:
		active, err := infrarepo.NewUplFileStore(cfg.StorageActivePath, *zlog)
		if err != nil {
			return nil, nil, nil, nil, func() {}, err
		}
		archived, err := infrarepo.NewUplFileStore(cfg.StorageArchivePath, *zlog)
		if err != nil {
			return nil, nil, nil, nil, func() {}, err
		}
		return active, archived, nil, nil, func() {}, nil
	}
}

func rateLimitConfig(cfg *config.Config) *ratelimit.Config {
	rc := ratelimit.DefaultConfig()
	rc.DefaultLimit = ratelimit.RateLimit{
		RequestsPerSecond: float64(cfg.RateLimitRPS) / cfg.RateLimitWindow.Seconds(),
		BurstSize:         cfg.RateLimitBurst,
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return rc
	}
	rc.StorageType = ratelimit.StorageRedis
	rc.RedisAddr = opts.Addr
	rc.RedisPassword = opts.Password
	rc.RedisDB = opts.DB
	return rc
}
