// Package service implements the reclamation sweep: the periodic pass that
// re-buckets snoozed leads whose callback time arrived and returns leads to
// the unassigned pool when their owner sat on them past the revert window.
package service

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/sweeper/repository"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// claimBatchSize bounds one sweep pass. A tenant with more due leads gets the
// rest on the next tick.
const claimBatchSize = 500

// Repo is the storage surface the sweep needs.
type Repo interface {
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
	ClaimDue(ctx context.Context, tenantID uuid.UUID, now, revertBefore time.Time, limit int) ([]repository.SweepLead, error)
	Apply(ctx context.Context, tenantID, leadID uuid.UUID, version int64, rebucket, reclaim bool) (bool, error)
	Release(ctx context.Context, tenantID uuid.UUID, leadIDs []uuid.UUID) error
}

// PolicyProvider resolves the tenant's assignment policy, which carries the
// revert window.
type PolicyProvider interface {
	Policy(ctx context.Context, tenantID uuid.UUID) (domain.AssignmentPolicy, error)
}

// Distributor runs one scheduler pass over the tenant's unassigned pool.
// After a sweep returns leads to the pool, the distributor hands them to the
// next agents in rotation instead of leaving them for a manual trigger.
type Distributor interface {
	DistributePending(ctx context.Context, tenantID uuid.UUID) (assigned, remaining int, err error)
}

// Result summarizes one sweep pass over a tenant.
type Result struct {
	Rebucketed int
	Reclaimed  int
}

type Service struct {
	repo        Repo
	policies    PolicyProvider
	distributor Distributor
	bus         events.Bus
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *logger.Logger

	// group collapses overlapping sweeps of the same tenant into one pass.
	group singleflight.Group
}

func New(repo Repo, policies PolicyProvider, dist Distributor, bus events.Bus, clk clock.Clock, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		policies:    policies,
		distributor: dist,
		bus:         bus,
		clock:       clk,
		metrics:     m,
		log:         log,
	}
}

// Tenants lists the tenants with sweepable leads.
func (s *Service) Tenants(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListTenants(ctx)
}

// SweepTenant runs one pass over a tenant. Overlapping calls for the same
// tenant share a single pass; the sweep itself is idempotent, so a retried
// task after a partial failure only picks up what is still due.
func (s *Service) SweepTenant(ctx context.Context, tenantID uuid.UUID) (Result, error) {
	v, err, _ := s.group.Do(tenantID.String(), func() (any, error) {
		return s.sweep(ctx, tenantID)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Service) sweep(ctx context.Context, tenantID uuid.UUID) (Result, error) {
	started := s.clock.Now()

	policy, err := s.policies.Policy(ctx, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("load policy: %w", err)
	}

	now := s.clock.Now()
	revertBefore := now.Add(-policy.RevertTime())

	claimed, err := s.repo.ClaimDue(ctx, tenantID, now, revertBefore, claimBatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("claim due leads: %w", err)
	}

	var result Result
	var stale []uuid.UUID
	for _, lead := range claimed {
		rebucket := lead.Tag == domain.TagNotConnected &&
			lead.NextCallAt != nil && !lead.NextCallAt.After(now)

		reclaim := lead.OwnerAgentID != nil &&
			!lastActivity(lead).After(revertBefore)

		if !rebucket && !reclaim {
			// Claimed on a condition that no longer holds; just unlatch.
			stale = append(stale, lead.ID)
			continue
		}

		applied, err := s.repo.Apply(ctx, tenantID, lead.ID, lead.Version, rebucket, reclaim)
		if err != nil {
			stale = append(stale, lead.ID)
			s.log.DatabaseError("sweep apply", err)
			continue
		}
		if !applied {
			// Lost the version race to a live write. Next pass decides.
			stale = append(stale, lead.ID)
			continue
		}

		if rebucket {
			result.Rebucketed++
			s.metrics.LeadsRebucketed.Inc()
		}
		if reclaim {
			result.Reclaimed++
			s.metrics.LeadsReclaimed.Inc()
			s.bus.Publish(ctx, events.LeadReclaimed{
				BaseEvent:     events.NewBaseEvent(),
				LeadID:        lead.ID,
				TenantID:      tenantID,
				PreviousAgent: *lead.OwnerAgentID,
			})
		}
	}

	if err := s.repo.Release(ctx, tenantID, stale); err != nil {
		s.log.DatabaseError("sweep release", err)
	}

	// Reclaimed and re-bucketed leads are back in the pool now. In auto mode
	// they go straight to the next agents in rotation rather than waiting for
	// an admin to trigger a pass.
	if s.distributor != nil && policy.Mode == domain.ModeAuto {
		assigned, remaining, err := s.distributor.DistributePending(ctx, tenantID)
		if err != nil {
			s.log.WithTenant(tenantID.String()).Warn("post-sweep distribution failed", "error", err)
		} else {
			s.log.WithTenant(tenantID.String()).Debug("post-sweep distribution",
				"assigned", assigned, "remaining", remaining)
		}
	}

	durationMs := float64(s.clock.Now().Sub(started)) / float64(time.Millisecond)
	s.metrics.SweepDuration.Observe(durationMs / 1000)
	s.log.SweepResult(tenantID.String(), result.Rebucketed, result.Reclaimed, durationMs)

	return result, nil
}

// lastActivity is the timestamp the revert window counts from: the last call
// the owner logged, or the assignment itself when no call was ever made.
func lastActivity(lead repository.SweepLead) time.Time {
	if lead.LastCallAt != nil {
		return *lead.LastCallAt
	}
	return lead.UpdatedAt
}
