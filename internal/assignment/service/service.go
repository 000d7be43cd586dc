// Package service implements the lead distribution scheduler: policy
// settings, the round-robin distribution pass, manual bulk assignment, and
// reads of the assignment audit log.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/transport"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
)

// distributionBatchSize caps how many pending leads one pass picks up.
const distributionBatchSize = 200

// Repo is the persistence surface the scheduler needs.
type Repo interface {
	GetPolicy(ctx context.Context, tenantID uuid.UUID) (domain.AssignmentPolicy, error)
	ReplacePolicy(ctx context.Context, p domain.AssignmentPolicy) error

	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error)
	ListUnassigned(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.Lead, error)
	CountUnassigned(ctx context.Context, tenantID uuid.UUID) (int, error)
	AssignLead(ctx context.Context, tenantID, leadID uuid.UUID, version int64, agentID uuid.UUID) (domain.Lead, error)

	Cursor(ctx context.Context, tenantID uuid.UUID, poolKey string) (uuid.UUID, error)
	SetCursor(ctx context.Context, tenantID uuid.UUID, poolKey string, agentID uuid.UUID) error

	AppendLog(ctx context.Context, e repository.LogEntry) error
	ListLogs(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]repository.LogEntry, int64, error)
	ListLeadHistory(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.LogEntry, error)
}

// AgentDirectory supplies agents with their derived load counters.
type AgentDirectory interface {
	GetByID(ctx context.Context, tenantID, agentID uuid.UUID, dayStart time.Time) (domain.Agent, error)
	ListActive(ctx context.Context, tenantID uuid.UUID, dayStart time.Time) ([]domain.Agent, error)
	ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, dayStart time.Time) ([]domain.Agent, error)
	ListByTeams(ctx context.Context, tenantID uuid.UUID, teamIDs []uuid.UUID, dayStart time.Time) ([]domain.Agent, error)
}

type Service struct {
	repo    Repo
	agents  AgentDirectory
	cache   *PolicyCache
	bus     events.Bus
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func New(repo Repo, agents AgentDirectory, cache *PolicyCache, bus events.Bus, clk clock.Clock, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		agents:  agents,
		cache:   cache,
		bus:     bus,
		clock:   clk,
		metrics: m,
		logger:  log,
	}
}

// dayStart returns midnight of the current calendar day, used as the window
// for the assigned-today counter.
func (s *Service) dayStart() time.Time {
	now := s.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// =============================================================================
// Policy settings
// =============================================================================

// Policy returns the tenant's assignment policy, falling back to the default
// when the settings screen has never been saved.
func (s *Service) Policy(ctx context.Context, tenantID uuid.UUID) (domain.AssignmentPolicy, error) {
	if cached, ok := s.cache.Get(ctx, tenantID); ok {
		return cached, nil
	}
	policy, err := s.repo.GetPolicy(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return domain.DefaultPolicy(tenantID), nil
		}
		return domain.AssignmentPolicy{}, apperr.Wrap(apperr.KindInternal, "failed to load assignment policy", err)
	}
	s.cache.Set(ctx, policy)
	return policy, nil
}

// UpdatePolicy validates and replaces the tenant's policy wholesale, then
// invalidates the cached copy.
func (s *Service) UpdatePolicy(ctx context.Context, policy domain.AssignmentPolicy) (domain.AssignmentPolicy, error) {
	if err := policy.Validate(); err != nil {
		return domain.AssignmentPolicy{}, err
	}
	if err := s.repo.ReplacePolicy(ctx, policy); err != nil {
		return domain.AssignmentPolicy{}, apperr.Wrap(apperr.KindInternal, "failed to save assignment policy", err)
	}
	if err := s.cache.Invalidate(ctx, policy.TenantID); err != nil {
		s.logger.WithTenant(policy.TenantID.String()).Warn("policy cache invalidation failed", "error", err)
	}
	policy.UpdatedAt = s.clock.Now()
	return policy, nil
}

// =============================================================================
// Distribution pass
// =============================================================================

// Distribute runs one scheduler pass over the tenant's unassigned pool:
// oldest lead first, next eligible agent in round-robin order. A pool with no
// eligible agent leaves leads pending; that is a normal outcome.
func (s *Service) Distribute(ctx context.Context, tenantID uuid.UUID) (transport.DistributeResult, error) {
	policy, err := s.Policy(ctx, tenantID)
	if err != nil {
		return transport.DistributeResult{}, err
	}

	pool, err := s.agents.ListActive(ctx, tenantID, s.dayStart())
	if err != nil {
		return transport.DistributeResult{}, apperr.Wrap(apperr.KindInternal, "failed to load agent pool", err)
	}

	pending, err := s.repo.ListUnassigned(ctx, tenantID, distributionBatchSize)
	if err != nil {
		return transport.DistributeResult{}, apperr.Wrap(apperr.KindInternal, "failed to load unassigned leads", err)
	}

	lastAssigned, err := s.repo.Cursor(ctx, tenantID, defaultPoolKey)
	if err != nil {
		return transport.DistributeResult{}, apperr.Wrap(apperr.KindInternal, "failed to load rotation cursor", err)
	}

	log := s.logger.WithTenant(tenantID.String())
	assigned := 0
	for _, lead := range pending {
		agent, ok := NextAgent(pool, lastAssigned, lead, policy)
		if !ok {
			s.metrics.DistributionSkips.WithLabelValues("no_capacity").Inc()
			s.bus.Publish(ctx, events.LeadPendingAssignment{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				TenantID:  tenantID,
				Reason:    "no eligible agent",
			})
			continue
		}

		if _, err := s.repo.AssignLead(ctx, tenantID, lead.ID, lead.Version, agent.ID); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				// Another writer touched the lead mid-pass; skip it, the
				// next tick picks it up with a fresh version.
				s.metrics.DistributionSkips.WithLabelValues("version_conflict").Inc()
				continue
			}
			return transport.DistributeResult{}, apperr.Wrap(apperr.KindInternal, "failed to assign lead", err)
		}

		if err := s.recordAssignment(ctx, lead, agent, nil, repository.AssignmentTypeAuto, nil); err != nil {
			log.DatabaseError("append assignment log", err)
		}
		lastAssigned = agent.ID
		if err := s.repo.SetCursor(ctx, tenantID, defaultPoolKey, agent.ID); err != nil {
			log.DatabaseError("persist rotation cursor", err)
		}
		noteAssignment(pool, agent.ID)
		assigned++
		log.Assignment(lead.ID.String(), agent.ID.String(), string(repository.AssignmentTypeAuto), "distribution pass")
	}

	remaining, err := s.repo.CountUnassigned(ctx, tenantID)
	if err != nil {
		remaining = len(pending) - assigned
	}
	s.metrics.UnassignedPoolSize.Set(float64(remaining))

	return transport.DistributeResult{Assigned: assigned, Remaining: remaining}, nil
}

// DistributePending runs one distribution pass and reports plain counts, for
// background callers that do not speak the HTTP transport types.
func (s *Service) DistributePending(ctx context.Context, tenantID uuid.UUID) (assigned, remaining int, err error) {
	res, err := s.Distribute(ctx, tenantID)
	return res.Assigned, res.Remaining, err
}

// AutoAssign routes one freshly created lead through the scheduler when the
// tenant runs in auto mode. In manual mode the lead stays in the pool.
func (s *Service) AutoAssign(ctx context.Context, lead domain.Lead) error {
	policy, err := s.Policy(ctx, lead.TenantID)
	if err != nil {
		return err
	}
	if policy.Mode != domain.ModeAuto {
		return nil
	}

	pool, err := s.agents.ListActive(ctx, lead.TenantID, s.dayStart())
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load agent pool", err)
	}
	lastAssigned, err := s.repo.Cursor(ctx, lead.TenantID, defaultPoolKey)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load rotation cursor", err)
	}

	agent, ok := NextAgent(pool, lastAssigned, lead, policy)
	if !ok {
		s.metrics.DistributionSkips.WithLabelValues("no_capacity").Inc()
		s.bus.Publish(ctx, events.LeadPendingAssignment{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			TenantID:  lead.TenantID,
			Reason:    "no eligible agent",
		})
		return nil
	}

	if _, err := s.repo.AssignLead(ctx, lead.TenantID, lead.ID, lead.Version, agent.ID); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil
		}
		return apperr.Wrap(apperr.KindInternal, "failed to assign lead", err)
	}
	if err := s.repo.SetCursor(ctx, lead.TenantID, defaultPoolKey, agent.ID); err != nil {
		s.logger.WithTenant(lead.TenantID.String()).DatabaseError("persist rotation cursor", err)
	}
	return s.recordAssignment(ctx, lead, agent, nil, repository.AssignmentTypeAuto, nil)
}

// =============================================================================
// Manual assignment
// =============================================================================

// AssignManual spreads a batch of leads over the selected agents and team
// members on an admin's behalf. The manual path bypasses the eligibility
// filter: capacity overruns produce warnings, not failures. Individual leads
// can still fail (terminal tag, version race) and are reported per lead; one
// bad lead never aborts the batch.
func (s *Service) AssignManual(ctx context.Context, tenantID uuid.UUID, req transport.ManualAssignRequest, assignedBy uuid.UUID) (transport.ManualAssignResult, error) {
	policy, err := s.Policy(ctx, tenantID)
	if err != nil {
		return transport.ManualAssignResult{}, err
	}

	targets, err := s.resolveTargets(ctx, tenantID, req.EmployeeIDs, req.TeamIDs)
	if err != nil {
		return transport.ManualAssignResult{}, err
	}
	if len(targets) == 0 {
		return transport.ManualAssignResult{}, apperr.Validation("no agents or teams selected")
	}

	result := transport.ManualAssignResult{
		Assigned: make([]transport.AssignedLead, 0, len(req.LeadIDs)),
		Failed:   make([]transport.ManualAssignError, 0),
	}

	next := 0
	for _, leadID := range req.LeadIDs {
		lead, err := s.repo.GetLead(ctx, tenantID, leadID)
		if err != nil {
			result.Failed = append(result.Failed, transport.ManualAssignError{LeadID: leadID, Reason: "lead not found"})
			continue
		}
		if lead.Tag.Terminal() {
			result.Failed = append(result.Failed, transport.ManualAssignError{LeadID: leadID, Reason: "lead is in a terminal state"})
			continue
		}

		agent := targets[next%len(targets)]
		if _, err := s.repo.AssignLead(ctx, tenantID, leadID, lead.Version, agent.ID); err != nil {
			reason := "assignment failed"
			if errors.Is(err, repository.ErrVersionConflict) {
				reason = "lead was modified concurrently"
			}
			result.Failed = append(result.Failed, transport.ManualAssignError{LeadID: leadID, Reason: reason})
			continue
		}
		next++

		if err := s.recordAssignment(ctx, lead, agent, &assignedBy, repository.AssignmentTypeManual, nil); err != nil {
			s.logger.WithTenant(tenantID.String()).DatabaseError("append assignment log", err)
		}
		noteAssignment(targets, agent.ID)
		result.Assigned = append(result.Assigned, transport.AssignedLead{LeadID: leadID, AgentID: agent.ID})
	}

	for _, agent := range targets {
		if limit, capped := agent.EffectiveDailyLimit(policy); capped && agent.AssignedToday > limit {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s exceeds the daily limit of %d after this batch", agent.Name, limit))
		}
		if cap, capped := agent.EffectiveBalanceCap(policy); capped && agent.ActiveBalance > cap {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s exceeds the active balance cap of %d after this batch", agent.Name, cap))
		}
	}

	return result, nil
}

// resolveTargets expands the selected employee and team ids into a deduplicated
// agent list in pool order.
func (s *Service) resolveTargets(ctx context.Context, tenantID uuid.UUID, employeeIDs, teamIDs []uuid.UUID) ([]domain.Agent, error) {
	dayStart := s.dayStart()
	targets := make([]domain.Agent, 0, len(employeeIDs))
	seen := make(map[uuid.UUID]struct{})

	if len(employeeIDs) > 0 {
		agents, err := s.agents.ListByIDs(ctx, tenantID, employeeIDs, dayStart)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to resolve selected agents", err)
		}
		for _, a := range agents {
			if _, ok := seen[a.ID]; !ok {
				seen[a.ID] = struct{}{}
				targets = append(targets, a)
			}
		}
	}
	if len(teamIDs) > 0 {
		agents, err := s.agents.ListByTeams(ctx, tenantID, teamIDs, dayStart)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to resolve selected teams", err)
		}
		for _, a := range agents {
			if _, ok := seen[a.ID]; !ok {
				seen[a.ID] = struct{}{}
				targets = append(targets, a)
			}
		}
	}
	return targets, nil
}

func (s *Service) recordAssignment(ctx context.Context, lead domain.Lead, agent domain.Agent, assignedBy *uuid.UUID, kind repository.AssignmentType, reason *string) error {
	from := repository.ReassignedFromSystem
	if lead.OwnerAgentID != nil {
		from = lead.OwnerAgentID.String()
	}
	if err := s.repo.AppendLog(ctx, repository.LogEntry{
		TenantID:       lead.TenantID,
		LeadID:         lead.ID,
		AgentID:        agent.ID,
		EmployeeName:   agent.Name,
		ReassignedFrom: from,
		AssignedByID:   assignedBy,
		AssignmentType: kind,
		Reason:         reason,
	}); err != nil {
		return err
	}

	s.metrics.AssignmentsTotal.WithLabelValues(string(kind)).Inc()

	by := "scheduler"
	if assignedBy != nil {
		by = assignedBy.String()
	}
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		TenantID:       lead.TenantID,
		PreviousAgent:  lead.OwnerAgentID,
		NewAgent:       agent.ID,
		AssignmentType: string(kind),
		AssignedBy:     by,
	})
	return nil
}

// =============================================================================
// Assignment log
// =============================================================================

// Logs returns one page of the tenant's assignment log.
func (s *Service) Logs(ctx context.Context, tenantID uuid.UUID, page, limit int) (transport.LogPageResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	entries, total, err := s.repo.ListLogs(ctx, tenantID, page, limit)
	if err != nil {
		return transport.LogPageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to read assignment log", err)
	}
	return transport.LogPageResponse{
		Logs:  transport.FromLogEntries(entries),
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

// LeadHistory returns a lead's full assignment history, oldest first.
func (s *Service) LeadHistory(ctx context.Context, tenantID, leadID uuid.UUID) ([]transport.LogEntryResponse, error) {
	if _, err := s.repo.GetLead(ctx, tenantID, leadID); err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "lead not found", err)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	entries, err := s.repo.ListLeadHistory(ctx, tenantID, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read assignment history", err)
	}
	return transport.FromLogEntries(entries), nil
}
