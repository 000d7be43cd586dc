// Package assignment wires the lead distribution scheduler: policy settings,
// round-robin distribution, manual assignment, and the assignment audit log.
package assignment

import (
	"leadflow_backend/internal/assignment/handler"
	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/service"
	directoryrepo "leadflow_backend/internal/directory/repository"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"time"
)

type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

// Options carries the shared dependencies the module needs.
type Options struct {
	Pool           *pgxpool.Pool
	Redis          redis.UniversalClient
	PolicyCacheTTL time.Duration
	Bus            events.Bus
	Clock          clock.Clock
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
	Validator      *validator.Validator
}

func NewModule(opts Options) *Module {
	repo := repository.New(opts.Pool)
	agents := directoryrepo.New(opts.Pool)
	cache := service.NewPolicyCache(opts.Redis, opts.PolicyCacheTTL)
	svc := service.New(repo, agents, cache, opts.Bus, opts.Clock, opts.Metrics, opts.Logger)

	return &Module{
		svc:     svc,
		handler: handler.New(svc, opts.Validator),
	}
}

func (m *Module) Name() string { return "assignment" }

// Service exposes the scheduler to sibling modules (intake routes new leads
// through it; campaigns reuse the audit log).
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	grp := ctx.Protected.Group("/assignment")
	m.handler.RegisterRoutes(grp)

	// Per-lead assignment history lives under the leads surface.
	ctx.Protected.GET("/leads/:id/assignment-history", m.handler.LeadHistory)
}
