package service

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/sweeper/repository"
	"leadflow_backend/platform/clock"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
)

type appliedWrite struct {
	rebucket bool
	reclaim  bool
}

type fakeSweepRepo struct {
	tenantID uuid.UUID
	leads    []repository.SweepLead

	applied   map[uuid.UUID]appliedWrite
	released  []uuid.UUID
	conflicts map[uuid.UUID]bool
}

func newFakeSweepRepo(tenantID uuid.UUID) *fakeSweepRepo {
	return &fakeSweepRepo{
		tenantID:  tenantID,
		applied:   make(map[uuid.UUID]appliedWrite),
		conflicts: make(map[uuid.UUID]bool),
	}
}

func (r *fakeSweepRepo) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	return []uuid.UUID{r.tenantID}, nil
}

func (r *fakeSweepRepo) ClaimDue(ctx context.Context, tenantID uuid.UUID, now, revertBefore time.Time, limit int) ([]repository.SweepLead, error) {
	claimed := make([]repository.SweepLead, 0)
	for _, l := range r.leads {
		snoozeDue := l.Tag == domain.TagNotConnected && l.NextCallAt != nil && !l.NextCallAt.After(now)

		activity := l.UpdatedAt
		if l.LastCallAt != nil {
			activity = *l.LastCallAt
		}
		ownerStale := l.OwnerAgentID != nil && !activity.After(revertBefore)

		if snoozeDue || ownerStale {
			claimed = append(claimed, l)
		}
		if len(claimed) == limit {
			break
		}
	}
	return claimed, nil
}

func (r *fakeSweepRepo) Apply(ctx context.Context, tenantID, leadID uuid.UUID, version int64, rebucket, reclaim bool) (bool, error) {
	if r.conflicts[leadID] {
		return false, nil
	}
	r.applied[leadID] = appliedWrite{rebucket: rebucket, reclaim: reclaim}
	return true, nil
}

func (r *fakeSweepRepo) Release(ctx context.Context, tenantID uuid.UUID, leadIDs []uuid.UUID) error {
	r.released = append(r.released, leadIDs...)
	return nil
}

type fixedPolicies struct {
	policy domain.AssignmentPolicy
}

func (p fixedPolicies) Policy(ctx context.Context, tenantID uuid.UUID) (domain.AssignmentPolicy, error) {
	return p.policy, nil
}

type fakeDistributor struct {
	calls []uuid.UUID
}

func (d *fakeDistributor) DistributePending(ctx context.Context, tenantID uuid.UUID) (int, int, error) {
	d.calls = append(d.calls, tenantID)
	return 1, 0, nil
}

func newTestService(repo *fakeSweepRepo, policy domain.AssignmentPolicy, clk clock.Clock) *Service {
	log := logger.New("development")
	return New(repo, fixedPolicies{policy: policy}, nil, events.NewInMemoryBus(log), clk, metrics.New(), log)
}

func newTestServiceWithDistributor(repo *fakeSweepRepo, policy domain.AssignmentPolicy, clk clock.Clock, dist Distributor) *Service {
	log := logger.New("development")
	return New(repo, fixedPolicies{policy: policy}, dist, events.NewInMemoryBus(log), clk, metrics.New(), log)
}

func TestSweepRebucketsDueSnoozedLead(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	due := now.Add(-5 * time.Minute)
	owner := uuid.New()

	repo := newFakeSweepRepo(tenantID)
	repo.leads = []repository.SweepLead{{
		ID:           uuid.New(),
		OwnerAgentID: &owner,
		Tag:          domain.TagNotConnected,
		NextCallAt:   &due,
		LastCallAt:   &due,
		UpdatedAt:    due,
		Version:      3,
	}}

	svc := newTestService(repo, domain.DefaultPolicy(tenantID), clock.NewFake(now))

	result, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Rebucketed != 1 {
		t.Fatalf("expected 1 rebucketed lead, got %d", result.Rebucketed)
	}
	if result.Reclaimed != 0 {
		t.Fatalf("expected no reclaimed leads, got %d", result.Reclaimed)
	}

	write, ok := repo.applied[repo.leads[0].ID]
	if !ok {
		t.Fatal("expected an apply write for the due lead")
	}
	if !write.rebucket || write.reclaim {
		t.Fatalf("expected rebucket-only write, got %+v", write)
	}
}

func TestSweepReclaimsStaleOwnership(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	owner := uuid.New()
	lastCall := now.Add(-48 * time.Hour)

	repo := newFakeSweepRepo(tenantID)
	repo.leads = []repository.SweepLead{{
		ID:           uuid.New(),
		OwnerAgentID: &owner,
		Tag:          domain.TagFollowUp,
		LastCallAt:   &lastCall,
		UpdatedAt:    lastCall,
		Version:      1,
	}}

	policy := domain.DefaultPolicy(tenantID)
	policy.RevertTimeHours = 24
	svc := newTestService(repo, policy, clock.NewFake(now))

	result, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed lead, got %d", result.Reclaimed)
	}

	write := repo.applied[repo.leads[0].ID]
	if !write.reclaim || write.rebucket {
		t.Fatalf("expected reclaim-only write, got %+v", write)
	}
}

func TestSweepRebucketAndReclaimTogether(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	owner := uuid.New()
	lastCall := now.Add(-72 * time.Hour)
	due := now.Add(-time.Hour)

	repo := newFakeSweepRepo(tenantID)
	repo.leads = []repository.SweepLead{{
		ID:           uuid.New(),
		OwnerAgentID: &owner,
		Tag:          domain.TagNotConnected,
		NextCallAt:   &due,
		LastCallAt:   &lastCall,
		UpdatedAt:    lastCall,
		Version:      7,
	}}

	policy := domain.DefaultPolicy(tenantID)
	policy.RevertTimeHours = 24
	svc := newTestService(repo, policy, clock.NewFake(now))

	result, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Rebucketed != 1 || result.Reclaimed != 1 {
		t.Fatalf("expected the lead counted in both buckets, got %+v", result)
	}

	write := repo.applied[repo.leads[0].ID]
	if !write.rebucket || !write.reclaim {
		t.Fatalf("expected combined write, got %+v", write)
	}
}

func TestSweepSkipsActiveOwnership(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	owner := uuid.New()
	recent := now.Add(-time.Hour)

	repo := newFakeSweepRepo(tenantID)
	repo.leads = []repository.SweepLead{{
		ID:           uuid.New(),
		OwnerAgentID: &owner,
		Tag:          domain.TagFollowUp,
		LastCallAt:   &recent,
		UpdatedAt:    recent,
		Version:      1,
	}}

	policy := domain.DefaultPolicy(tenantID)
	policy.RevertTimeHours = 24
	svc := newTestService(repo, policy, clock.NewFake(now))

	result, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Rebucketed != 0 || result.Reclaimed != 0 {
		t.Fatalf("expected nothing swept, got %+v", result)
	}
	if len(repo.applied) != 0 {
		t.Fatalf("expected no apply writes, got %d", len(repo.applied))
	}
}

func TestSweepReleasesLeadOnVersionConflict(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	owner := uuid.New()
	lastCall := now.Add(-48 * time.Hour)
	leadID := uuid.New()

	repo := newFakeSweepRepo(tenantID)
	repo.leads = []repository.SweepLead{{
		ID:           leadID,
		OwnerAgentID: &owner,
		Tag:          domain.TagFollowUp,
		LastCallAt:   &lastCall,
		UpdatedAt:    lastCall,
		Version:      1,
	}}
	repo.conflicts[leadID] = true

	policy := domain.DefaultPolicy(tenantID)
	policy.RevertTimeHours = 24
	svc := newTestService(repo, policy, clock.NewFake(now))

	result, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Rebucketed != 0 || result.Reclaimed != 0 {
		t.Fatalf("expected nothing counted after a lost race, got %+v", result)
	}

	if len(repo.released) != 1 || repo.released[0] != leadID {
		t.Fatalf("expected the conflicted lead released, got %v", repo.released)
	}
}

func TestSweepTriggersDistributionInAutoMode(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	owner := uuid.New()
	lastCall := now.Add(-48 * time.Hour)

	repo := newFakeSweepRepo(tenantID)
	repo.leads = []repository.SweepLead{{
		ID:           uuid.New(),
		OwnerAgentID: &owner,
		Tag:          domain.TagFollowUp,
		LastCallAt:   &lastCall,
		UpdatedAt:    lastCall,
		Version:      1,
	}}

	policy := domain.DefaultPolicy(tenantID)
	policy.Mode = domain.ModeAuto
	policy.RevertTimeHours = 24
	dist := &fakeDistributor{}
	svc := newTestServiceWithDistributor(repo, policy, clock.NewFake(now), dist)

	result, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed lead, got %+v", result)
	}
	if len(dist.calls) != 1 || dist.calls[0] != tenantID {
		t.Fatalf("expected one distribution pass for the tenant, got %v", dist.calls)
	}
}

func TestSweepSkipsDistributionInManualMode(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	repo := newFakeSweepRepo(tenantID)
	repo.leads = []repository.SweepLead{{
		ID:         uuid.New(),
		Tag:        domain.TagNotConnected,
		NextCallAt: &due,
		UpdatedAt:  due,
		Version:    1,
	}}

	dist := &fakeDistributor{}
	svc := newTestServiceWithDistributor(repo, domain.DefaultPolicy(tenantID), clock.NewFake(now), dist)

	if _, err := svc.SweepTenant(context.Background(), tenantID); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(dist.calls) != 0 {
		t.Fatalf("manual mode must leave the pool alone, got %d distribution passes", len(dist.calls))
	}
}

func TestSweepIsIdempotentAcrossPasses(t *testing.T) {
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	repo := newFakeSweepRepo(tenantID)
	lead := repository.SweepLead{
		ID:         uuid.New(),
		Tag:        domain.TagNotConnected,
		NextCallAt: &due,
		UpdatedAt:  now.Add(-time.Minute),
		Version:    1,
	}
	repo.leads = []repository.SweepLead{lead}

	svc := newTestService(repo, domain.DefaultPolicy(tenantID), clock.NewFake(now))

	first, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if first.Rebucketed != 1 {
		t.Fatalf("expected first pass to rebucket, got %+v", first)
	}

	// The first pass moved the lead out of NotConnected.
	repo.leads[0].Tag = domain.TagNewLead

	second, err := svc.SweepTenant(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if second.Rebucketed != 0 || second.Reclaimed != 0 {
		t.Fatalf("expected second pass to find nothing, got %+v", second)
	}
}
