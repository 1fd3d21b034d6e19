package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"healthflow/internal/config"
	"healthflow/internal/constants"
	"healthflow/internal/idempotency"
	"healthflow/internal/logger"
	"healthflow/internal/ops"
	"healthflow/internal/processing"
	"healthflow/internal/relay"
	"healthflow/pkg/bootstrap"
	"healthflow/pkg/health"
	"healthflow/pkg/logging"
	"healthflow/pkg/metrics"
	"healthflow/pkg/middleware"
	"healthflow/pkg/ratelimit"
	"healthflow/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	mongoClient    *mongo.Client
	repo           processing.Repository
	buffer         *relay.Buffer
	consumer       *relay.Consumer
	pool           *relay.Pool
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initMongoDB(ctx); err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	if err := a.initRedis(ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	if err := a.InitBroker(ctx); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.tracingConfig(), constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterRelayMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initPipeline()

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initMongoDB(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}

	var repo processing.Repository = processing.NewRepository(mongoClient.Database(dbName), a.Logger)
	if a.Config.CircuitBreaker.Enabled {
		repo = processing.NewCircuitBreakerRepository(repo, a.Config.CircuitBreaker)
	}
	a.repo = repo
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		if a.Config.Idempotency.Enabled {
			return err
		}
		initCtx := logging.WithServiceName(ctx, constants.ServiceName)
		a.Logger.WarnwCtx(initCtx, "Redis unavailable, continuing without it", "error", err)
		return nil
	}
	a.redis = rdb
	return nil
}

func (a *App) initPipeline() {
	a.buffer = relay.NewBuffer(a.Config.Relay.BufferCapacity)

	var guard relay.DuplicateGuard
	if a.Config.Idempotency.Enabled && a.redis != nil {
		ttl := time.Duration(a.Config.Idempotency.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = constants.DefaultIdempotencyTTL
		}
		guard = idempotency.NewGuard(a.redis, ttl, a.Logger)
	}

	prefetch := a.Config.Broker.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = constants.DefaultPrefetchCount
	}

	a.consumer = relay.NewConsumer(a.Broker, a.buffer, guard, constants.PatientProcessingQueue, prefetch, a.Logger)
	a.pool = relay.NewPool(a.buffer, a.repo, a.Broker, a.Config.Relay.WorkerCount, a.Logger)
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.CorrelationIDMiddleware())
	router.Use(ratelimit.Middleware(ratelimit.DefaultConfig()))

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	healthRegistry.Register(health.NewConnectionChecker("rabbitmq", a.Broker))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}

	handler := ops.NewHandler(a.repo, healthRegistry, a.Logger)
	handler.RegisterRoutes(router)

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: router,
	}
	return nil
}

func (a *App) tracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:      a.Config.Tracing.Enabled,
		ServiceName:  a.Config.Tracing.ServiceName,
		Endpoint:     a.Config.Tracing.OTLP.Endpoint,
		Insecure:     a.Config.Tracing.OTLP.Insecure,
		SamplerType:  a.Config.Tracing.Sampler.Type,
		SamplerParam: a.Config.Tracing.Sampler.Param,
	}
}

// Run blocks until ctx is cancelled or a component fails. On shutdown the
// consumer stops first, the buffer is closed, and workers drain what was
// already acked before everything else comes down.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// Workers run on their own context so they can finish the buffered
	// backlog after the consumer's context is cancelled.
	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()

	poolDone := make(chan error, 1)
	go func() {
		poolDone <- a.pool.Run(drainCtx)
	}()

	g.Go(func() error {
		err := a.consumer.Run(gCtx)
		// No more writers; closing lets the workers drain and exit.
		a.buffer.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	runErr := g.Wait()

	select {
	case <-poolDone:
	case <-time.After(constants.DrainTimeout):
		a.Logger.Warnw("Drain timeout exceeded, abandoning buffered events",
			"remaining", a.buffer.Len(),
		)
		cancelDrain()
		<-poolDone
	}

	if shutdownErr := a.Shutdown(context.Background()); shutdownErr != nil && runErr == nil {
		runErr = shutdownErr
	}
	return runErr
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down background worker")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
