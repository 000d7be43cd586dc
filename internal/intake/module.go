// Package intake wires the lead entry point: create, persist, and route new
// leads into distribution.
package intake

import (
	"leadflow_backend/internal/intake/handler"
	"leadflow_backend/internal/intake/repository"
	"leadflow_backend/internal/intake/service"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

// Options carries the shared dependencies. Scheduler and Campaigns are the
// assignment and campaign modules' services.
type Options struct {
	Pool      *pgxpool.Pool
	Scheduler service.Scheduler
	Campaigns service.CampaignDistributor
	Logger    *logger.Logger
	Validator *validator.Validator
}

func NewModule(opts Options) *Module {
	repo := repository.New(opts.Pool)
	svc := service.New(repo, opts.Scheduler, opts.Campaigns, opts.Logger)
	return &Module{handler: handler.New(svc, opts.Validator)}
}

func (m *Module) Name() string { return "intake" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}
