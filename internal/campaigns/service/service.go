// Package service implements campaign management and the campaign
// distributor: a distribution scheduler scoped to the campaign's audience,
// with hierarchy-level escalation and a fixed daily cap.
package service

import (
	"context"
	"errors"
	"time"

	assignmentrepo "leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/campaigns/domain"
	"leadflow_backend/internal/campaigns/repository"
	"leadflow_backend/internal/campaigns/transport"
	"leadflow_backend/internal/events"
	leads "leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
)

// Repo is the campaign persistence surface.
type Repo interface {
	Create(ctx context.Context, c domain.Campaign) (domain.Campaign, error)
	Update(ctx context.Context, c domain.Campaign) (domain.Campaign, error)
	GetByID(ctx context.Context, tenantID, campaignID uuid.UUID) (domain.Campaign, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]domain.Campaign, error)
	SetStatus(ctx context.Context, tenantID, campaignID uuid.UUID, from, to domain.Status) (domain.Campaign, error)
	IncrementLeadsGenerated(ctx context.Context, tenantID, campaignID uuid.UUID) (int, error)
	TryIncrementDailyCount(ctx context.Context, campaignID uuid.UUID, day time.Time, cap int) (bool, error)
	ReleaseDailySlot(ctx context.Context, campaignID uuid.UUID, day time.Time) error
}

// AssignmentStore is the slice of the assignment repository the campaign
// distributor writes through: lead ownership, rotation cursors, and the
// shared audit log.
type AssignmentStore interface {
	AssignLead(ctx context.Context, tenantID, leadID uuid.UUID, version int64, agentID uuid.UUID) (leads.Lead, error)
	Cursor(ctx context.Context, tenantID uuid.UUID, poolKey string) (uuid.UUID, error)
	SetCursor(ctx context.Context, tenantID uuid.UUID, poolKey string, agentID uuid.UUID) error
	AppendLog(ctx context.Context, e assignmentrepo.LogEntry) error
}

// AgentDirectory resolves the campaign's audience into agents.
type AgentDirectory interface {
	ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, dayStart time.Time) ([]leads.Agent, error)
	ListByTeams(ctx context.Context, tenantID uuid.UUID, teamIDs []uuid.UUID, dayStart time.Time) ([]leads.Agent, error)
}

// PolicyProvider supplies the tenant policy the member overrides shadow.
type PolicyProvider interface {
	Policy(ctx context.Context, tenantID uuid.UUID) (leads.AssignmentPolicy, error)
}

type Service struct {
	repo        Repo
	assignments AssignmentStore
	agents      AgentDirectory
	policies    PolicyProvider
	bus         events.Bus
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func New(repo Repo, assignments AssignmentStore, agents AgentDirectory, policies PolicyProvider, bus events.Bus, clk clock.Clock, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		assignments: assignments,
		agents:      agents,
		policies:    policies,
		bus:         bus,
		clock:       clk,
		metrics:     m,
		logger:      log,
	}
}

// =============================================================================
// Campaign management
// =============================================================================

// Create validates and stores a new campaign in the scheduled state.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CampaignRequest) (transport.CampaignResponse, error) {
	campaign := req.ToDomain(tenantID)
	campaign.ID = uuid.New()
	if err := campaign.Validate(); err != nil {
		return transport.CampaignResponse{}, err
	}
	created, err := s.repo.Create(ctx, campaign)
	if err != nil {
		return transport.CampaignResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create campaign", err)
	}
	return transport.FromCampaign(created), nil
}

// Update replaces a campaign's configuration. Status is not touched here.
func (s *Service) Update(ctx context.Context, tenantID, campaignID uuid.UUID, req transport.CampaignRequest) (transport.CampaignResponse, error) {
	current, err := s.repo.GetByID(ctx, tenantID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return transport.CampaignResponse{}, apperr.NotFound("campaign not found")
		}
		return transport.CampaignResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load campaign", err)
	}

	campaign := req.ToDomain(tenantID)
	campaign.ID = campaignID
	campaign.Status = current.Status
	if err := campaign.Validate(); err != nil {
		return transport.CampaignResponse{}, err
	}

	updated, err := s.repo.Update(ctx, campaign)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return transport.CampaignResponse{}, apperr.NotFound("campaign not found")
		}
		return transport.CampaignResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update campaign", err)
	}
	return transport.FromCampaign(updated), nil
}

// Get returns one campaign.
func (s *Service) Get(ctx context.Context, tenantID, campaignID uuid.UUID) (transport.CampaignResponse, error) {
	campaign, err := s.repo.GetByID(ctx, tenantID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return transport.CampaignResponse{}, apperr.NotFound("campaign not found")
		}
		return transport.CampaignResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load campaign", err)
	}
	return transport.FromCampaign(campaign), nil
}

// List returns the tenant's campaigns, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]transport.CampaignResponse, error) {
	campaigns, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list campaigns", err)
	}
	return transport.FromCampaigns(campaigns), nil
}

// SetStatus transitions a campaign's lifecycle state, rejecting transitions
// outside scheduled→active→{paused↔active}→ended.
func (s *Service) SetStatus(ctx context.Context, tenantID, campaignID uuid.UUID, next domain.Status) (transport.CampaignResponse, error) {
	current, err := s.repo.GetByID(ctx, tenantID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return transport.CampaignResponse{}, apperr.NotFound("campaign not found")
		}
		return transport.CampaignResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load campaign", err)
	}
	if !current.Status.CanTransitionTo(next) {
		return transport.CampaignResponse{}, apperr.Validation(
			"cannot transition campaign from " + string(current.Status) + " to " + string(next))
	}

	updated, err := s.repo.SetStatus(ctx, tenantID, campaignID, current.Status, next)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return transport.CampaignResponse{}, apperr.Conflict("campaign status changed concurrently")
		}
		return transport.CampaignResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update campaign status", err)
	}

	s.bus.Publish(ctx, events.CampaignStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: campaignID,
		TenantID:   tenantID,
		OldStatus:  string(current.Status),
		NewStatus:  string(next),
	})
	return transport.FromCampaign(updated), nil
}

// =============================================================================
// Campaign distributor
// =============================================================================

func campaignPoolKey(campaignID uuid.UUID) string {
	return "campaign:" + campaignID.String()
}

// DistributeLead routes one campaign-sourced lead through the campaign's
// restricted pool, level by level. A false return with nil error means the
// lead stayed unassigned: the campaign is not accepting leads (inactive,
// daily cap reached, window closed) or no member has capacity.
func (s *Service) DistributeLead(ctx context.Context, lead leads.Lead, campaignID uuid.UUID) (bool, error) {
	campaign, err := s.repo.GetByID(ctx, lead.TenantID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return false, apperr.NotFound("campaign not found")
		}
		return false, apperr.Wrap(apperr.KindInternal, "failed to load campaign", err)
	}

	now := s.clock.Now()
	if campaign.Status != domain.StatusActive {
		s.metrics.DistributionSkips.WithLabelValues("campaign_inactive").Inc()
		return false, nil
	}
	if !campaign.StartDate.IsZero() && now.Before(campaign.StartDate) {
		s.metrics.DistributionSkips.WithLabelValues("campaign_window").Inc()
		return false, nil
	}
	if !campaign.EndDate.IsZero() && now.After(campaign.EndDate) {
		s.metrics.DistributionSkips.WithLabelValues("campaign_window").Inc()
		return false, nil
	}

	policy, err := s.policies.Policy(ctx, lead.TenantID)
	if err != nil {
		return false, err
	}

	pool, err := s.resolveAudience(ctx, campaign, now)
	if err != nil {
		return false, err
	}
	levels := buildLevels(campaign, pool)

	lastAssigned, err := s.assignments.Cursor(ctx, lead.TenantID, campaignPoolKey(campaignID))
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to load rotation cursor", err)
	}

	agent, ok := nextCampaignAgent(levels, lastAssigned, policy)
	if !ok {
		s.metrics.DistributionSkips.WithLabelValues("no_capacity").Inc()
		s.bus.Publish(ctx, events.LeadPendingAssignment{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			TenantID:  lead.TenantID,
			Reason:    "no eligible campaign member",
		})
		return false, nil
	}

	// Take the slot only once a recipient exists, and hand it back when the
	// assignment itself falls through. Otherwise a capped day burns slots on
	// leads that never reach an agent.
	if campaign.LimitType == domain.LimitFixed {
		ok, err := s.repo.TryIncrementDailyCount(ctx, campaignID, now, campaign.LeadsPerDay)
		if err != nil {
			return false, apperr.Wrap(apperr.KindInternal, "failed to take daily campaign slot", err)
		}
		if !ok {
			s.metrics.DistributionSkips.WithLabelValues("campaign_daily_cap").Inc()
			return false, nil
		}
	}

	if _, err := s.assignments.AssignLead(ctx, lead.TenantID, lead.ID, lead.Version, agent.ID); err != nil {
		s.releaseDailySlot(ctx, campaign, now)
		if errors.Is(err, assignmentrepo.ErrVersionConflict) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindInternal, "failed to assign lead", err)
	}
	if err := s.assignments.SetCursor(ctx, lead.TenantID, campaignPoolKey(campaignID), agent.ID); err != nil {
		s.logger.WithTenant(lead.TenantID.String()).DatabaseError("persist rotation cursor", err)
	}

	if err := s.assignments.AppendLog(ctx, assignmentrepo.LogEntry{
		TenantID:       lead.TenantID,
		LeadID:         lead.ID,
		AgentID:        agent.ID,
		EmployeeName:   agent.Name,
		ReassignedFrom: assignmentrepo.ReassignedFromSystem,
		AssignmentType: assignmentrepo.AssignmentTypeCampaign,
	}); err != nil {
		s.logger.WithTenant(lead.TenantID.String()).DatabaseError("append assignment log", err)
	}

	hits, err := s.repo.IncrementLeadsGenerated(ctx, lead.TenantID, campaignID)
	if err != nil {
		s.logger.WithTenant(lead.TenantID.String()).DatabaseError("increment campaign hits", err)
	} else {
		s.metrics.CampaignHitsTotal.WithLabelValues(campaignID.String()).Inc()
		s.bus.Publish(ctx, events.CampaignHit{
			BaseEvent:  events.NewBaseEvent(),
			CampaignID: campaignID,
			TenantID:   lead.TenantID,
			NewHits:    hits,
		})
	}

	s.metrics.AssignmentsTotal.WithLabelValues(string(assignmentrepo.AssignmentTypeCampaign)).Inc()
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		TenantID:       lead.TenantID,
		NewAgent:       agent.ID,
		AssignmentType: string(assignmentrepo.AssignmentTypeCampaign),
		AssignedBy:     "scheduler",
	})
	return true, nil
}

func (s *Service) releaseDailySlot(ctx context.Context, campaign domain.Campaign, now time.Time) {
	if campaign.LimitType != domain.LimitFixed {
		return
	}
	if err := s.repo.ReleaseDailySlot(ctx, campaign.ID, now); err != nil {
		s.logger.WithTenant(campaign.TenantID.String()).DatabaseError("release daily campaign slot", err)
	}
}

func (s *Service) resolveAudience(ctx context.Context, campaign domain.Campaign, now time.Time) ([]leads.Agent, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var (
		pool []leads.Agent
		err  error
	)
	if campaign.AudienceType == domain.AudienceTeam {
		pool, err = s.agents.ListByTeams(ctx, campaign.TenantID, campaign.SelectedAudiences, dayStart)
	} else {
		pool, err = s.agents.ListByIDs(ctx, campaign.TenantID, campaign.SelectedAudiences, dayStart)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to resolve campaign audience", err)
	}
	return pool, nil
}
