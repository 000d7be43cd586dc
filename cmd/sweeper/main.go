package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/assignment"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/sweeper"
	sweeperrepo "leadflow_backend/internal/sweeper/repository"
	sweepersvc "leadflow_backend/internal/sweeper/service"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting sweeper", "env", cfg.Env, "interval", cfg.SweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	// The sweeper reads the revert window from the tenant policy and runs the
	// post-sweep distribution pass, so it reuses the assignment module's
	// service without mounting its routes.
	assignmentModule := assignment.NewModule(assignment.Options{
		Pool:      pool,
		Bus:       eventBus,
		Clock:     clock.System{},
		Metrics:   metrics.New(),
		Logger:    log,
		Validator: validator.New(),
	})

	assignmentSvc := assignmentModule.Service()

	svc := sweepersvc.New(
		sweeperrepo.New(pool),
		assignmentSvc,
		assignmentSvc,
		eventBus,
		clock.System{},
		metrics.New(),
		log,
	)

	client, err := sweeper.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize sweep client", "error", err)
		panic("failed to initialize sweep client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := sweeper.NewWorker(cfg, svc, log)
	if err != nil {
		log.Error("failed to initialize sweep worker", "error", err)
		panic("failed to initialize sweep worker: " + err.Error())
	}

	cron := sweeper.NewCron(svc, client, cfg.GetSweepInterval(), log)
	go cron.Run(ctx)

	worker.Run(ctx)
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
