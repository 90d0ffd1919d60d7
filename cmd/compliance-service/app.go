package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"planguard/internal/broker"
	"planguard/internal/catalog"
	"planguard/internal/config"
	"planguard/internal/constants"
	"planguard/internal/enforcement"
	"planguard/internal/logger"
	"planguard/internal/meeting"
	"planguard/internal/resolver"
	"planguard/internal/rulepack"
	"planguard/pkg/bootstrap"
	"planguard/pkg/health"
	"planguard/pkg/metrics"
	"planguard/pkg/middleware"
	"planguard/pkg/ratelimit"
	"planguard/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	producer       broker.Producer
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, log logger.Logger, migrationsPath string) error {
	dc := bootstrap.NewDatabaseConnector(cfg, log)
	db, err := dc.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := dc.RunMigrations(db, migrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.InfowCtx(ctx, "Migrations applied")
	return nil
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	tp, err := tracing.Init(a.config.Tracing, "compliance-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := a.dbConnector.RunMigrations(db, "migrations/postgres"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if a.config.Resolver.Cache.Enabled {
		redisClient, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			a.logger.WarnwCtx(ctx, "Redis connection failed, resolver cache disabled", "error", err)
		} else {
			a.redisClient = redisClient
		}
	}

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("compliance-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.Admin.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.Admin.RateLimit.RPS,
			Burst:           a.config.Admin.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.Admin.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.Admin.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	catalogRepo := catalog.NewRepository(a.db)
	catalogSvc := catalog.NewService(catalogRepo)

	packRepo := rulepack.NewRepository(a.db)
	auditRepo := rulepack.NewAuditRepository(a.db)

	var resolverCache *resolver.Cache
	if a.redisClient != nil {
		resolverCache = resolver.NewCache(a.redisClient, a.config.Resolver.Cache.TTLSeconds, a.logger)
	}

	packOpts := []rulepack.ServiceOption{
		rulepack.WithAudit(auditRepo),
	}
	if resolverCache != nil {
		packOpts = append(packOpts, rulepack.WithCacheInvalidator(resolverCache))
	}
	if a.config.Broker.Type == "kafka" && a.config.Broker.Kafka.PackEventTopic != "" {
		producer, err := broker.NewProducer(a.config.Broker, a.logger)
		if err != nil {
			a.logger.WarnwCtx(context.Background(), "Failed to create pack event producer, pack events will be disabled", "error", err)
		} else {
			a.producer = producer
			packOpts = append(packOpts, rulepack.WithPackEvents(rulepack.NewPackEventProducer(producer, a.config.Broker.Kafka.PackEventTopic)))
			a.logger.InfowCtx(context.Background(), "Pack event producer initialized")
		}
	}
	packSvc := rulepack.NewService(packRepo, a.logger, packOpts...)

	resolverSvc := resolver.NewService(packRepo, resolverCache, a.logger)

	meetingRepo := meeting.NewCircuitBreakerRepository(meeting.NewRepository(a.db), a.config.CircuitBreaker)

	enforcementSvc, err := enforcement.NewService(meetingRepo, packRepo, resolverSvc, a.config.Enforcement, a.logger)
	if err != nil {
		return err
	}

	meetingSvc := meeting.NewService(meetingRepo, a.logger, meeting.WithCloseGate(enforcementSvc))

	catalog.NewHandler(catalogSvc, a.logger).RegisterRoutes(router)
	rulepack.NewHandler(packSvc, a.logger).RegisterRoutes(router)
	resolver.NewHandler(resolverSvc, a.logger).RegisterRoutes(router)
	meeting.NewHandler(meetingSvc, a.logger).RegisterRoutes(router)
	enforcement.NewHandler(enforcementSvc, a.logger).RegisterRoutes(router)

	metrics.RegisterEngineMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds * time.Second,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer shutdown error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.dbConnector.ShutdownDatabases(a.redisClient, a.db)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
