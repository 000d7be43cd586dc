package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/assignment"
	"leadflow_backend/internal/calls"
	"leadflow_backend/internal/campaigns"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/intake"
	"leadflow_backend/internal/notifier"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	appMetrics := metrics.New()
	appClock := clock.System{}
	val := validator.New()

	rdb := initRedis(cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	assignmentModule := assignment.NewModule(assignment.Options{
		Pool:           pool,
		Redis:          rdb,
		PolicyCacheTTL: cfg.GetPolicyCacheTTL(),
		Bus:            eventBus,
		Clock:          appClock,
		Metrics:        appMetrics,
		Logger:         log,
		Validator:      val,
	})

	callsModule := calls.NewModule(calls.Options{
		Pool:       pool,
		Policies:   assignmentModule.Service(),
		Reassigner: assignmentModule.Service(),
		Bus:        eventBus,
		Clock:      appClock,
		Metrics:    appMetrics,
		Logger:     log,
		Validator:  val,
	})

	campaignsModule := campaigns.NewModule(campaigns.Options{
		Pool:      pool,
		Policies:  assignmentModule.Service(),
		Bus:       eventBus,
		Clock:     appClock,
		Metrics:   appMetrics,
		Logger:    log,
		Validator: val,
	})

	intakeModule := intake.NewModule(intake.Options{
		Pool:      pool,
		Scheduler: assignmentModule.Service(),
		Campaigns: campaignsModule.Service(),
		Logger:    log,
		Validator: val,
	})

	// Notifier subscribes to domain events and relays them over SSE.
	notifierModule := notifier.New(log)
	notifierModule.RegisterHandlers(eventBus)
	defer notifierModule.Close()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:         cfg,
		Logger:         log,
		Health:         db.NewPoolAdapter(pool),
		EventBus:       eventBus,
		MetricsHandler: appMetrics.Handler(),
		Modules: []apphttp.Module{
			assignmentModule,
			callsModule,
			campaignsModule,
			intakeModule,
			notifierModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRedis builds the client backing the policy cache. Redis is optional in
// development; without it the cache degrades to repository reads.
func initRedis(cfg config.RedisConfig, log *logger.Logger) redis.UniversalClient {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		log.Warn("REDIS_URL not configured; policy cache disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Error("invalid REDIS_URL; policy cache disabled", "error", err)
		return nil
	}

	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}

	return redis.NewClient(opt)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
