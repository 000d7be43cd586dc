// Package calls wires the call-attempt state machine: outcome submission,
// call history, and follow-up conflict detection.
package calls

import (
	"leadflow_backend/internal/calls/handler"
	"leadflow_backend/internal/calls/repository"
	"leadflow_backend/internal/calls/service"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

// Options carries the shared dependencies the module needs. Policies and
// Reassigner come from the assignment module.
type Options struct {
	Pool       *pgxpool.Pool
	Policies   service.PolicyProvider
	Reassigner service.Reassigner
	Bus        events.Bus
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
	Validator  *validator.Validator
}

func NewModule(opts Options) *Module {
	repo := repository.New(opts.Pool)
	svc := service.New(repo, opts.Policies, opts.Reassigner, opts.Bus, opts.Clock, opts.Metrics, opts.Logger)
	return &Module{handler: handler.New(svc, opts.Validator)}
}

func (m *Module) Name() string { return "calls" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}
