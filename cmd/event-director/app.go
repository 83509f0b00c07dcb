package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"event-director/internal/broker"
	"event-director/internal/config"
	"event-director/internal/config_handler"
	"event-director/internal/constants"
	"event-director/internal/director"
	"event-director/internal/logger"
	"event-director/internal/networkmap"
	"event-director/internal/routecache"
	"event-director/pkg/bootstrap"
	"event-director/pkg/health"
	"event-director/pkg/logging"
	"event-director/pkg/metrics"
	"event-director/pkg/middleware"
	"event-director/pkg/ratelimit"
	"event-director/pkg/tracing"
)

const storeBreakerName = "network-map-store"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	mongoClient    *mongo.Client
	redisClient    *redis.Client
	repo           *networkmap.CircuitBreakerRepository
	cache          *routecache.Cache
	warmup         *director.Warmup
	service        *director.Service
	tracerProvider *tracing.TracerProvider
	health         *health.CheckerRegistry
	server         *http.Server
	instance       string
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
		instance:    instanceID(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, tracing.ServiceInfo{
		Name:         constants.ServiceName,
		InstanceID:   a.instance,
		FunctionName: a.Config.Director.FunctionName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterDirectorMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterHTTPMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initStores(ctx); err != nil {
		return err
	}

	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initService()

	if a.Config.Director.Warmup.Enabled {
		if _, err := a.warmup.Run(ctx); err != nil {
			return fmt.Errorf("failed to warm route cache: %w", err)
		}
	}

	a.initHTTPServer(ctx)
	return nil
}

// initStores connects the network map store and the route cache backend.
func (a *App) initStores(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := a.initCache(ctx); err != nil {
		return fmt.Errorf("failed to initialize route cache: %w", err)
	}
	a.warmup = director.NewWarmup(a.cache, a.Config.Director.Warmup, a.Logger)
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	var repo networkmap.Repository

	switch a.Config.Database.ConfigStore {
	case constants.ConfigStorePostgres:
		db, err := a.dbConnector.InitPostgreSQL(ctx)
		if err != nil {
			return err
		}
		a.db = db
		a.health.Register(health.NewPostgreSQLChecker(db))
		repo = networkmap.NewPostgresRepository(db)
	default:
		client, err := a.dbConnector.InitMongoDB(ctx)
		if err != nil {
			return err
		}
		a.mongoClient = client
		a.health.Register(health.NewMongoDBChecker(client))
		mongoCfg := a.Config.Database.MongoDB
		repo = networkmap.NewMongoDBRepository(client.Database(mongoCfg.Database), mongoCfg.Collection)
	}

	a.repo = networkmap.NewCircuitBreakerRepository(repo, storeBreakerName, a.Config.CircuitBreaker)
	a.health.RegisterOptional(health.NewFuncChecker(storeBreakerName, func(context.Context) error {
		if state := a.repo.State(); state == "open" {
			return fmt.Errorf("circuit breaker %s", state)
		}
		return nil
	}))
	return nil
}

func (a *App) initCache(ctx context.Context) error {
	var store routecache.Store

	switch a.Config.Cache.Backend {
	case constants.CacheBackendRedis:
		client, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return err
		}
		a.redisClient = client
		a.health.RegisterOptional(health.NewRedisChecker(client))
		store = routecache.NewRedisStore(client, constants.CacheKeyPrefixRedis)
	default:
		store = routecache.NewFreeCacheStore(a.Config.Cache.LocalSizeMB)
	}

	a.cache = routecache.New(store, a.repo, a.Config.Cache.TTL(), a.Logger)
	return nil
}

func (a *App) initService() {
	dispatcher := director.NewDispatcher(a.Producer, a.Config.Director, a.Logger)
	a.service = director.NewService(a.cache, dispatcher, a.Config.Director, a.Logger)
}

func (a *App) initHTTPServer(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	router.GET("/health", func(c *gin.Context) {
		h := a.health.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	if a.Config.Server.RateLimit.Enabled {
		api.Use(ratelimit.RateLimitMiddleware(ctx, ratelimit.FromConfig(a.Config.Server.RateLimit)))
	}
	director.NewHandler(a.service, a.warmup, a.cache, a.Logger).RegisterRoutes(api)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	workers := max(a.Config.Broker.Workers, 1)
	consumers := make([]broker.Consumer, 0, workers)
	for i := 0; i < workers; i++ {
		consumer, err := a.NewConsumer(constants.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to create consumer %d: %w", i, err)
		}
		consumers = append(consumers, consumer)
	}

	g, gCtx := errgroup.WithContext(ctx)
	runCtx := logging.WithServiceName(gCtx, constants.ServiceName)

	g.Go(func() error {
		a.Logger.InfowCtx(runCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	inputTopic, configTopic, _ := broker.Topics(a.Config.Broker)

	if configTopic != "" {
		configConsumer, err := a.NewBroadcastConsumer(constants.ServiceName, a.instance)
		if err != nil {
			a.Logger.WarnwCtx(runCtx, "Failed to create config event consumer, event-driven reload disabled",
				"error", err,
			)
		} else {
			configEventHandler := config_handler.NewNetworkMapHandler(a.warmup, a.Logger)
			g.Go(func() error {
				a.Logger.InfowCtx(runCtx, "Starting config update event consumer",
					"topic", configTopic,
				)
				return configConsumer.Consume(gCtx, configTopic, broker.JSONHandler(configEventHandler.HandleConfigUpdateEvent))
			})
		}
	}

	g.Go(func() error {
		return a.warmup.StartReloader(gCtx)
	})

	handler := broker.JSONHandler(a.service.Handle)
	for _, consumer := range consumers {
		g.Go(func() error {
			return consumer.Consume(gCtx, inputTopic, handler)
		})
	}
	a.Logger.InfowCtx(runCtx, "Transaction consumers started",
		"topic", inputTopic,
		"workers", workers,
	)

	return g.Wait()
}

// instanceID names this process for per-instance consumer groups. The host
// name keeps committed offsets across restarts of the same pod.
func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

func (a *App) closeStores(ctx context.Context) []error {
	return a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down event director")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return append(errs, a.closeStores(ctx)...)
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
