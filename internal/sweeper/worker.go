// Package sweeper runs the reclamation sweep as asynq tasks: a cron loop
// fans one task out per tenant and the worker executes the sweep pass.
package sweeper

import (
	"context"
	"fmt"

	"leadflow_backend/internal/sweeper/service"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	svc    *service.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SweeperConfig, svc *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		svc:    svc,
		log:    log,
	}

	mux.HandleFunc(TaskTenantSweep, w.handleTenantSweep)

	return w, nil
}

func (w *Worker) handleTenantSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTenantSweepPayload(task)
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	_, err = w.svc.SweepTenant(ctx, tenantID)
	return err
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("sweeper worker stopped", "error", err)
	}
}
