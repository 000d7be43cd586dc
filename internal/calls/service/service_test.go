package service

import (
	"context"
	"testing"
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

type fakeRepo struct {
	lead       domain.Lead
	records    []repository.CallRecord
	collisions int
	conflicts  []repository.Conflict
}

func (f *fakeRepo) GetLead(_ context.Context, _, leadID uuid.UUID) (domain.Lead, error) {
	if leadID != f.lead.ID {
		return domain.Lead{}, repository.ErrLeadNotFound
	}
	return f.lead, nil
}

func (f *fakeRepo) ApplyOutcome(_ context.Context, lead domain.Lead, d domain.OutcomeDecision, rec repository.CallRecord, calledAt time.Time) (domain.Lead, error) {
	if lead.Version != f.lead.Version {
		return domain.Lead{}, repository.ErrVersionConflict
	}
	updated := f.lead
	updated.Tag = d.Tag
	updated.CallCount = d.CallCount
	updated.Priority = d.Priority
	updated.NextCallAt = d.NextCallAt
	updated.LastCallAt = &calledAt
	updated.ReassignmentCount = d.ReassignmentCount
	if d.ReleaseOwnership {
		updated.OwnerAgentID = nil
	}
	updated.Version++
	f.lead = updated
	f.records = append(f.records, rec)
	return updated, nil
}

func (f *fakeRepo) ListCallRecords(_ context.Context, _, _ uuid.UUID) ([]repository.CallRecord, error) {
	return f.records, nil
}

func (f *fakeRepo) ListConflicts(_ context.Context, _ uuid.UUID, _ *uuid.UUID) ([]repository.Conflict, error) {
	return f.conflicts, nil
}

func (f *fakeRepo) ListCollisions(_ context.Context, _, _, _ uuid.UUID, _ time.Time) ([]domain.Lead, error) {
	return nil, nil
}

func (f *fakeRepo) CountCollisions(_ context.Context, _, _, _ uuid.UUID, _ time.Time) (int, error) {
	return f.collisions, nil
}

type fixedPolicies struct {
	policy domain.AssignmentPolicy
}

func (p fixedPolicies) Policy(_ context.Context, _ uuid.UUID) (domain.AssignmentPolicy, error) {
	return p.policy, nil
}

type recordingReassigner struct {
	calls []uuid.UUID
}

func (r *recordingReassigner) AutoAssign(_ context.Context, lead domain.Lead) error {
	r.calls = append(r.calls, lead.ID)
	return nil
}

func newTestService(repo *fakeRepo, policy domain.AssignmentPolicy, clk clock.Clock, reassigner Reassigner) *Service {
	log := logger.New("development")
	return New(repo, fixedPolicies{policy: policy}, reassigner, events.NewInMemoryBus(log), clk, metrics.New(), log)
}

func ownedLead(agentID uuid.UUID) domain.Lead {
	return domain.Lead{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		OwnerAgentID: &agentID,
		Tag:          domain.TagNewLead,
		Priority:     domain.PriorityMedium,
		Version:      1,
	}
}

func TestHitCallConnectedSchedulesFollowUp(t *testing.T) {
	agentID := uuid.New()
	repo := &fakeRepo{lead: ownedLead(agentID)}
	clk := clock.NewFake(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	svc := newTestService(repo, domain.DefaultPolicy(repo.lead.TenantID), clk, nil)

	next := clk.Now().Add(2 * time.Hour)
	resp, err := svc.HitCall(context.Background(), repo.lead.TenantID, repo.lead.ID, agentID, transport.HitCallRequest{
		Status:      "connected",
		FinalAction: "follow_up",
		Remarks:     "interested, call back",
		Priority:    "High",
		NextCallAt:  &next,
	})
	if err != nil {
		t.Fatalf("hit call: %v", err)
	}
	if resp.Tag != string(domain.TagFollowUp) {
		t.Errorf("tag = %s, want FollowUp", resp.Tag)
	}
	if resp.CallCount != 0 {
		t.Errorf("call count = %d, want 0 for a connected call", resp.CallCount)
	}
	if len(repo.records) != 1 {
		t.Fatalf("recorded %d call records, want 1", len(repo.records))
	}
	if repo.records[0].ResultingTag != domain.TagFollowUp {
		t.Errorf("record tag = %s, want FollowUp", repo.records[0].ResultingTag)
	}
}

func TestHitCallRejectsNonOwner(t *testing.T) {
	repo := &fakeRepo{lead: ownedLead(uuid.New())}
	clk := clock.NewFake(time.Now())
	svc := newTestService(repo, domain.DefaultPolicy(repo.lead.TenantID), clk, nil)

	_, err := svc.HitCall(context.Background(), repo.lead.TenantID, repo.lead.ID, uuid.New(), transport.HitCallRequest{
		Status:      "not_connected",
		FinalAction: "follow_up",

		NotConnectedReason: "no answer",
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestHitCallStaleVersionRejected(t *testing.T) {
	agentID := uuid.New()
	repo := &fakeRepo{lead: ownedLead(agentID)}
	clk := clock.NewFake(time.Now())
	svc := newTestService(repo, domain.DefaultPolicy(repo.lead.TenantID), clk, nil)

	stale := int64(0)
	_, err := svc.HitCall(context.Background(), repo.lead.TenantID, repo.lead.ID, agentID, transport.HitCallRequest{
		Status:             "not_connected",
		FinalAction:        "follow_up",
		NotConnectedReason: "busy",
		Version:            &stale,
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestHitCallAutoDisqualificationReassigns(t *testing.T) {
	agentID := uuid.New()
	lead := ownedLead(agentID)
	lead.CallCount = 2
	repo := &fakeRepo{lead: lead}

	policy := domain.DefaultPolicy(lead.TenantID)
	policy.Mode = domain.ModeAuto
	policy.AutoDisqualification = true
	policy.ReassignmentOnDisqualified = true
	policy.MaxReassignmentLimit = 2
	policy.MaxCallAttempts = 3

	clk := clock.NewFake(time.Now())
	reassigner := &recordingReassigner{}
	svc := newTestService(repo, policy, clk, reassigner)

	resp, err := svc.HitCall(context.Background(), lead.TenantID, lead.ID, agentID, transport.HitCallRequest{
		Status:             "not_connected",
		FinalAction:        "follow_up",
		NotConnectedReason: "switched off",
	})
	if err != nil {
		t.Fatalf("hit call: %v", err)
	}
	if resp.Tag != string(domain.TagNewLead) {
		t.Errorf("tag = %s, want NewLead after disqualification", resp.Tag)
	}
	if resp.OwnerAgentID != nil {
		t.Error("ownership should be released on disqualification")
	}
	if resp.ReassignmentCount != 1 {
		t.Errorf("reassignment count = %d, want 1", resp.ReassignmentCount)
	}
	if len(reassigner.calls) != 1 || reassigner.calls[0] != lead.ID {
		t.Error("released lead should be routed back through the scheduler")
	}
}

func TestHitCallCollisionWarning(t *testing.T) {
	agentID := uuid.New()
	repo := &fakeRepo{lead: ownedLead(agentID), collisions: 1}
	clk := clock.NewFake(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	svc := newTestService(repo, domain.DefaultPolicy(repo.lead.TenantID), clk, nil)

	next := clk.Now().Add(time.Hour)
	resp, err := svc.HitCall(context.Background(), repo.lead.TenantID, repo.lead.ID, agentID, transport.HitCallRequest{
		Status:      "connected",
		FinalAction: "follow_up",
		Remarks:     "call back later",
		Priority:    "Low",
		NextCallAt:  &next,
	})
	if err != nil {
		t.Fatalf("hit call: %v", err)
	}
	if len(resp.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one collision warning", resp.Warnings)
	}
}

func TestHitCallGapEnforced(t *testing.T) {
	agentID := uuid.New()
	lead := ownedLead(agentID)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)
	lead.LastCallAt = &recent
	repo := &fakeRepo{lead: lead}

	policy := domain.DefaultPolicy(lead.TenantID)
	policy.CallTimeGapMinutes = 15

	svc := newTestService(repo, policy, clock.NewFake(now), nil)
	_, err := svc.HitCall(context.Background(), lead.TenantID, lead.ID, agentID, transport.HitCallRequest{
		Status:             "not_connected",
		FinalAction:        "follow_up",
		NotConnectedReason: "no answer",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation failure for call gap", err)
	}
}
