package sweeper

import (
	"context"
	"time"

	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// TenantLister enumerates the tenants due for a sweep. The sweeper service
// implements it.
type TenantLister interface {
	Tenants(ctx context.Context) ([]uuid.UUID, error)
}

// Cron periodically fans a sweep task out per tenant. Enqueues are paced so
// a large tenant count does not burst Redis on every tick.
type Cron struct {
	tenants  TenantLister
	enqueuer SweepEnqueuer
	interval time.Duration
	limiter  *rate.Limiter
	log      *logger.Logger
}

func NewCron(tenants TenantLister, enqueuer SweepEnqueuer, interval time.Duration, log *logger.Logger) *Cron {
	if interval < time.Second {
		interval = time.Minute
	}
	return &Cron{
		tenants:  tenants,
		enqueuer: enqueuer,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(50), 10),
		log:      log,
	}
}

// Run blocks until ctx is cancelled. The first fan-out happens immediately;
// subsequent ones follow the configured interval.
func (c *Cron) Run(ctx context.Context) {
	c.fanOut(ctx)

	scheduler := cron.New()
	_, err := scheduler.AddFunc("@every "+c.interval.String(), func() {
		c.fanOut(ctx)
	})
	if err != nil {
		c.log.Error("failed to schedule sweep fan-out", "error", err)
		return
	}

	scheduler.Start()
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
}

func (c *Cron) fanOut(ctx context.Context) {
	tenants, err := c.tenants.Tenants(ctx)
	if err != nil {
		c.log.Error("failed to list tenants for sweep", "error", err)
		return
	}

	enqueued := 0
	for _, tenantID := range tenants {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		if err := c.enqueuer.EnqueueTenantSweep(ctx, tenantID); err != nil {
			c.log.Error("failed to enqueue sweep", "tenant_id", tenantID, "error", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		c.log.Debug("sweep fan-out complete", "tenants", enqueued)
	}
}
