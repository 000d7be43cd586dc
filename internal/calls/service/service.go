// Package service runs the call-attempt state machine against storage: it
// validates submissions, applies the resulting transition atomically, and
// surfaces schedule-collision warnings.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/calls/repository"
	"leadflow_backend/internal/calls/transport"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
)

// Repo is the persistence surface of the call module.
type Repo interface {
	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error)
	ApplyOutcome(ctx context.Context, lead domain.Lead, d domain.OutcomeDecision, rec repository.CallRecord, calledAt time.Time) (domain.Lead, error)
	ListCallRecords(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.CallRecord, error)
	ListConflicts(ctx context.Context, tenantID uuid.UUID, agentID *uuid.UUID) ([]repository.Conflict, error)
	ListCollisions(ctx context.Context, tenantID, agentID, excludeLeadID uuid.UUID, at time.Time) ([]domain.Lead, error)
	CountCollisions(ctx context.Context, tenantID, agentID, excludeLeadID uuid.UUID, at time.Time) (int, error)
}

// PolicyProvider returns the tenant's assignment policy. Backed by the
// assignment module's cached policy reads.
type PolicyProvider interface {
	Policy(ctx context.Context, tenantID uuid.UUID) (domain.AssignmentPolicy, error)
}

// Reassigner routes a released lead back through the distribution scheduler.
type Reassigner interface {
	AutoAssign(ctx context.Context, lead domain.Lead) error
}

type Service struct {
	repo       Repo
	policies   PolicyProvider
	reassigner Reassigner
	bus        events.Bus
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func New(repo Repo, policies PolicyProvider, reassigner Reassigner, bus events.Bus, clk clock.Clock, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		policies:   policies,
		reassigner: reassigner,
		bus:        bus,
		clock:      clk,
		metrics:    m,
		logger:     log,
	}
}

// HitCall records one call attempt on a lead owned by the calling agent and
// applies the state machine's decision atomically. A concurrent mutation of
// the lead rejects the submission with a retryable conflict.
func (s *Service) HitCall(ctx context.Context, tenantID, leadID, agentID uuid.UUID, req transport.HitCallRequest) (transport.HitCallResponse, error) {
	lead, err := s.repo.GetLead(ctx, tenantID, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return transport.HitCallResponse{}, apperr.NotFound("lead not found")
		}
		return transport.HitCallResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	if req.Version != nil && *req.Version != lead.Version {
		return transport.HitCallResponse{}, apperr.Conflict("lead was modified since it was loaded")
	}
	if lead.OwnerAgentID == nil || *lead.OwnerAgentID != agentID {
		return transport.HitCallResponse{}, apperr.Forbidden("only the owning agent can log a call on this lead")
	}

	policy, err := s.policies.Policy(ctx, tenantID)
	if err != nil {
		return transport.HitCallResponse{}, err
	}

	now := s.clock.Now()
	decision, err := domain.DecideOutcome(lead, policy, req.ToDomain(), now)
	if err != nil {
		return transport.HitCallResponse{}, err
	}

	var warnings []string
	if decision.NextCallAt != nil {
		collisions, err := s.repo.CountCollisions(ctx, tenantID, agentID, leadID, *decision.NextCallAt)
		if err != nil {
			s.logger.WithTenant(tenantID.String()).DatabaseError("check schedule collisions", err)
		} else if collisions > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"%d other lead(s) already have a call scheduled at %s",
				collisions, decision.NextCallAt.Format("2006-01-02 15:04")))
		}
	}

	rec := repository.CallRecord{
		ID:           uuid.New(),
		TenantID:     tenantID,
		LeadID:       leadID,
		AgentID:      agentID,
		Response:     domain.CallResponse(req.Status),
		Reason:       decision.Reason,
		Remarks:      req.Remarks,
		DurationMin:  req.DurationMin,
		ResultingTag: decision.Tag,
	}

	updated, err := s.repo.ApplyOutcome(ctx, lead, decision, rec, now)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return transport.HitCallResponse{}, apperr.Conflict("lead was modified concurrently, reload and retry")
		}
		return transport.HitCallResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record call outcome", err)
	}

	s.metrics.CallOutcomesTotal.WithLabelValues(req.Status).Inc()
	s.bus.Publish(ctx, events.CallRecorded{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       leadID,
		TenantID:     tenantID,
		AgentID:      agentID,
		Response:     req.Status,
		ResultingTag: string(updated.Tag),
		CallCount:    updated.CallCount,
	})

	if updated.Tag == domain.TagDropped {
		s.metrics.LeadsDroppedTotal.Inc()
		s.bus.Publish(ctx, events.LeadDropped{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			TenantID:  tenantID,
			Reason:    decision.Reason,
			AutoRule:  req.FinalAction != string(domain.ActionDrop),
		})
	}

	if decision.ReleaseOwnership && s.reassigner != nil {
		if err := s.reassigner.AutoAssign(ctx, updated); err != nil {
			// The lead stays in the pool; the next distribution pass
			// picks it up.
			s.logger.WithTenant(tenantID.String()).Warn("reassignment after disqualification failed",
				"lead_id", leadID.String(), "error", err)
		}
	}

	return transport.FromLead(updated, warnings), nil
}

// History returns a lead's call records, newest first.
func (s *Service) History(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.CallRecord, error) {
	if _, err := s.repo.GetLead(ctx, tenantID, leadID); err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	records, err := s.repo.ListCallRecords(ctx, tenantID, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read call history", err)
	}
	return records, nil
}

// Conflicts lists follow-up schedule collisions. Pass a nil agentID for the
// whole tenant.
func (s *Service) Conflicts(ctx context.Context, tenantID uuid.UUID, agentID *uuid.UUID) ([]repository.Conflict, error) {
	conflicts, err := s.repo.ListConflicts(ctx, tenantID, agentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to detect call conflicts", err)
	}
	return conflicts, nil
}

// ConflictsAt returns the agent's leads already scheduled in the same minute
// as the candidate time, excluding excludeLeadID. Read-only, safe to call
// while the user is still editing the follow-up date.
func (s *Service) ConflictsAt(ctx context.Context, tenantID, agentID uuid.UUID, at time.Time, excludeLeadID uuid.UUID) ([]domain.Lead, error) {
	leads, err := s.repo.ListCollisions(ctx, tenantID, agentID, excludeLeadID, at)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to detect call conflicts", err)
	}
	return leads, nil
}
