// Package service implements lead intake: persist the incoming lead and
// route it to the campaign distributor or the tenant scheduler.
package service

import (
	"context"
	"errors"

	"leadflow_backend/internal/intake/repository"
	"leadflow_backend/internal/intake/transport"
	leads "leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"

	"github.com/google/uuid"
)

// Repo is the intake persistence surface.
type Repo interface {
	Create(ctx context.Context, rec repository.LeadRecord) (repository.LeadRecord, error)
	GetByID(ctx context.Context, tenantID, leadID uuid.UUID) (repository.LeadRecord, error)
	PhoneExists(ctx context.Context, tenantID uuid.UUID, phone string) (bool, error)
}

// Scheduler is the tenant-wide distribution scheduler.
type Scheduler interface {
	AutoAssign(ctx context.Context, lead leads.Lead) error
}

// CampaignDistributor routes campaign-sourced leads.
type CampaignDistributor interface {
	DistributeLead(ctx context.Context, lead leads.Lead, campaignID uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repo
	scheduler Scheduler
	campaigns CampaignDistributor
	logger    *logger.Logger
}

func New(repo Repo, scheduler Scheduler, campaigns CampaignDistributor, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		campaigns: campaigns,
		logger:    log,
	}
}

// Create registers an incoming lead. Leads with a phone number already on
// file land in the Duplicate bucket and skip distribution; everything else
// starts as an unassigned NewLead and goes through the campaign distributor
// (when campaign-sourced) or the tenant scheduler.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	normalized := phone.NormalizeE164(req.Phone)

	rec := repository.LeadRecord{
		Lead: leads.Lead{
			ID:         uuid.New(),
			TenantID:   tenantID,
			CampaignID: req.CampaignID,
			Tag:        leads.TagNewLead,
			Priority:   leads.Priority(req.Priority),
		},
		Name:   req.Name,
		Phone:  normalized,
		Email:  req.Email,
		Source: req.Source,
	}

	duplicate, err := s.repo.PhoneExists(ctx, tenantID, normalized)
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to check for duplicates", err)
	}
	if duplicate {
		rec.Tag = leads.TagDuplicate
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err)
	}

	if created.Tag != leads.TagDuplicate {
		if err := s.route(ctx, created); err != nil {
			// Routing failures leave the lead in the pool for the next
			// scheduler tick.
			s.logger.WithTenant(tenantID.String()).Warn("lead routing failed",
				"lead_id", created.ID.String(), "error", err)
		} else {
			// Re-read so the response reflects the assignment.
			if fresh, err := s.repo.GetByID(ctx, tenantID, created.ID); err == nil {
				created = fresh
			}
		}
	}

	return transport.FromRecord(created), nil
}

func (s *Service) route(ctx context.Context, rec repository.LeadRecord) error {
	if rec.CampaignID != nil {
		_, err := s.campaigns.DistributeLead(ctx, rec.Lead, *rec.CampaignID)
		return err
	}
	return s.scheduler.AutoAssign(ctx, rec.Lead)
}

// Get returns one lead with contact fields.
func (s *Service) Get(ctx context.Context, tenantID, leadID uuid.UUID) (transport.LeadResponse, error) {
	rec, err := s.repo.GetByID(ctx, tenantID, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return transport.FromRecord(rec), nil
}
