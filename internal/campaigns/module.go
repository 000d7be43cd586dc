// Package campaigns wires campaign management and the campaign distributor.
package campaigns

import (
	assignmentrepo "leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/campaigns/handler"
	"leadflow_backend/internal/campaigns/repository"
	"leadflow_backend/internal/campaigns/service"
	directoryrepo "leadflow_backend/internal/directory/repository"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

// Options carries the shared dependencies the module needs. Policies comes
// from the assignment module.
type Options struct {
	Pool      *pgxpool.Pool
	Policies  service.PolicyProvider
	Bus       events.Bus
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Validator *validator.Validator
}

func NewModule(opts Options) *Module {
	repo := repository.New(opts.Pool)
	assignments := assignmentrepo.New(opts.Pool)
	agents := directoryrepo.New(opts.Pool)
	svc := service.New(repo, assignments, agents, opts.Policies, opts.Bus, opts.Clock, opts.Metrics, opts.Logger)

	return &Module{
		svc:     svc,
		handler: handler.New(svc, opts.Validator),
	}
}

func (m *Module) Name() string { return "campaigns" }

// Service exposes the campaign distributor to lead intake.
func (m *Module) Service() *service.Service { return m.svc }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/campaigns"))
}
