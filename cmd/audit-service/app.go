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
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"chronicle/internal/admin"
	"chronicle/internal/audit"
	"chronicle/internal/compliance"
	"chronicle/internal/config"
	"chronicle/internal/constants"
	"chronicle/internal/destination"
	"chronicle/internal/event"
	"chronicle/internal/eventlog"
	"chronicle/internal/logger"
	"chronicle/internal/retention"
	"chronicle/internal/routing"
	"chronicle/internal/sourcing"
	"chronicle/pkg/bootstrap"
	"chronicle/pkg/cel"
	"chronicle/pkg/errors"
	"chronicle/pkg/health"
	"chronicle/pkg/metrics"
	"chronicle/pkg/middleware"
	"chronicle/pkg/migrations"
	"chronicle/pkg/ratelimit"
	"chronicle/pkg/tracing"
)

const serviceName = "audit-service"

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	redisClient *redis.Client
	mongoClient *mongo.Client

	sourcing           *sourcing.Service
	router             *routing.Router
	routingReloader    *routing.Reloader
	complianceReloader *compliance.Reloader

	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	a.InitBroker(serviceName)

	if err := a.initSourcing(ctx); err != nil {
		return fmt.Errorf("failed to initialize sourcing: %w", err)
	}

	if err := a.initRouting(ctx); err != nil {
		return fmt.Errorf("failed to initialize routing: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterSourcingMetrics()
	metrics.RegisterRoutingMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAdminMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Sourcing.Dedup.Enabled {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return err
		}
		a.redisClient = rdb
	}

	if a.Config.Database.MongoDB.URI != "" {
		mongoClient, err := a.dbConnector.InitMongoDB(ctx)
		if err != nil {
			return err
		}
		a.mongoClient = mongoClient

		if err := migrations.EnsureSinkCollection(ctx, a.mongoDatabase()); err != nil {
			return fmt.Errorf("failed to ensure sink collection: %w", err)
		}
	}

	return nil
}

func (a *App) mongoDatabase() *mongo.Database {
	if a.mongoClient == nil {
		return nil
	}
	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	return a.mongoClient.Database(dbName)
}

func (a *App) initSourcing(ctx context.Context) error {
	store, err := a.buildEventStore(ctx)
	if err != nil {
		return err
	}

	retentionPolicies := retention.PoliciesFromConfig(a.Config.Retention.Policies)
	retentionMgr := retention.NewManager(retentionPolicies)

	var complianceRules []event.ComplianceRule
	for _, region := range a.Config.Sourcing.ComplianceRegions {
		complianceRules = append(complianceRules, compliance.RegionRules(region)...)
	}
	complianceMgr := compliance.NewManager(complianceRules, a.Config.Sourcing.ComplianceRegions, a.Logger)
	compliance.RegisterBuiltinEvaluators(complianceMgr, retentionMgr)

	opts := sourcing.DefaultOptions()
	opts.MaxEvents = a.Config.Sourcing.MaxEvents
	opts.SnapshotInterval = a.Config.Sourcing.SnapshotInterval
	opts.ComplianceRegions = a.Config.Sourcing.ComplianceRegions
	opts.RetentionPolicies = retentionPolicies
	opts.GapWarnThreshold = a.Config.Sourcing.GapWarnThreshold
	if a.Config.Sourcing.EnableAuditTrail != nil {
		opts.EnableAuditTrail = *a.Config.Sourcing.EnableAuditTrail
	}
	if a.Config.Sourcing.EnableCompliance != nil {
		opts.EnableCompliance = *a.Config.Sourcing.EnableCompliance
	}
	if a.Config.Sourcing.EnableRetention != nil {
		opts.EnableRetention = *a.Config.Sourcing.EnableRetention
	}

	svc := sourcing.NewService(store, audit.NewManager(), complianceMgr, retentionMgr, opts, a.Logger)

	if a.Config.Sourcing.Dedup.Enabled && a.redisClient != nil {
		cache := eventlog.NewRedisDedupCache(a.redisClient)
		svc.SetDuplicateGuard(eventlog.NewDuplicateGuard(cache, a.Config.Sourcing.Dedup, a.Logger))
	}

	if a.db != nil {
		repo := compliance.NewRepository(a.db)
		a.complianceReloader = compliance.NewReloader(repo, complianceMgr, a.Config.Compliance.Reload, a.Logger)
	}

	a.sourcing = svc
	return nil
}

func (a *App) buildEventStore(ctx context.Context) (eventlog.Store, error) {
	if a.Config.Sourcing.EventLogBackend == "mongodb" {
		mongoDB := a.mongoDatabase()
		if mongoDB == nil {
			return nil, fmt.Errorf("mongodb event log backend requires a mongodb connection")
		}
		collection := a.Config.Sourcing.EventLogCollection
		if collection == "" {
			collection = constants.DefaultEventLogCollection
		}
		store := eventlog.NewMongoStore(mongoDB, collection)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure event log indexes: %w", err)
		}
		return store, nil
	}

	return eventlog.NewMemoryStore(a.Config.Sourcing.MaxEvents), nil
}

func (a *App) initRouting(ctx context.Context) error {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	chains := routing.NewChainSet(evaluator, a.Config.Routing.Fallback.OnError, a.Logger)
	rules := routing.NewRuleSet(evaluator, a.Logger)

	registry := destination.NewRegistry()
	registry.Register(destination.NewWebhookHandler(nil, a.Logger))
	registry.Register(destination.NewAPIHandler(nil, a.Logger))
	registry.Register(destination.NewFileHandler("", a.Logger))
	registry.Register(destination.NewQueueHandler(a.Producer, "", a.Logger))
	if mongoDB := a.mongoDatabase(); mongoDB != nil {
		registry.Register(destination.NewDatabaseHandler(mongoDB, a.Logger))
	}

	a.router = routing.NewRouter(chains, rules, registry, a.Config.Routing.DispatchTimeout, a.Logger)

	if a.db != nil {
		repo := routing.NewRepository(a.db)
		a.routingReloader = routing.NewReloader(repo, rules, a.Config.Routing.Reload, a.Logger)
	}

	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	if a.Config.Tracing.Enabled {
		engine.Use(tracing.GinMiddleware(serviceName))
	}

	engine.Use(middleware.RecoveryMiddleware(a.Logger))
	engine.Use(middleware.LoggerMiddleware(a.Logger))
	engine.Use(middleware.RequestIDMiddleware())

	if a.Config.Admin.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Admin.RateLimit.RPS,
			Burst:           a.Config.Admin.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Admin.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Admin.RateLimit.MaxAge) * time.Second,
		}
		engine.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	adminHandler := admin.NewHandler(a.sourcing, a.router, a.Logger)
	adminHandler.RegisterRoutes(engine)

	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	engine.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: engine,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.routingReloader != nil {
		g.Go(func() error {
			return a.routingReloader.Start(gCtx)
		})
	}

	if a.complianceReloader != nil {
		g.Go(func() error {
			return a.complianceReloader.Start(gCtx)
		})
	}

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultInputTopic
	}
	g.Go(func() error {
		return a.Consumer.Consume(gCtx, inputTopic, a.handleEvent)
	})

	return g.Wait()
}

// handleEvent is the ingestion path for events arriving over Kafka.
// Duplicates are dropped without error; a routing failure does not
// fail consumption since the append already succeeded and failed
// dispatches are visible in the routing results.
func (a *App) handleEvent(ctx context.Context, evt event.Event) error {
	result, err := a.sourcing.AppendEventWithAudit(ctx, evt)
	if err != nil {
		if errors.IsDuplicate(err) {
			a.Logger.InfowCtx(ctx, "Duplicate event dropped", "event_id", evt.ID)
			return nil
		}
		a.Logger.ErrorwCtx(ctx, "Failed to append event", "error", err)
		return err
	}

	routeResult := a.router.Route(ctx, evt)
	if !routeResult.Success && routeResult.Reason == "" {
		a.Logger.WarnwCtx(ctx, "Event routing failed for all destinations",
			"event_id", evt.ID,
			"destinations", len(routeResult.Results),
		)
	}

	a.Logger.DebugwCtx(ctx, "Event processed",
		"event_id", result.EventID,
		"derivation_errors", len(result.DerivationErrors),
		"routing_reason", routeResult.Reason,
	)
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down audit service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
