package service

import (
	"testing"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func testAgent(name string, balance int) domain.Agent {
	return domain.Agent{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		Name:          name,
		ActiveBalance: balance,
	}
}

func testPolicy() domain.AssignmentPolicy {
	p := domain.DefaultPolicy(uuid.New())
	p.Mode = domain.ModeAuto
	return p
}

func TestNextAgentRotatesFairly(t *testing.T) {
	pool := []domain.Agent{testAgent("a", 0), testAgent("b", 0), testAgent("c", 0)}
	policy := testPolicy()
	lead := domain.Lead{Priority: domain.PriorityMedium}

	counts := make(map[uuid.UUID]int)
	last := uuid.Nil
	for i := 0; i < 9; i++ {
		agent, ok := NextAgent(pool, last, lead, policy)
		if !ok {
			t.Fatalf("round %d: no agent selected", i)
		}
		counts[agent.ID]++
		noteAssignment(pool, agent.ID)
		last = agent.ID
	}

	for _, a := range pool {
		if counts[a.ID] != 3 {
			t.Errorf("agent %s got %d leads, want 3", a.Name, counts[a.ID])
		}
	}
}

func TestNextAgentSkipsAgentsAtCapacity(t *testing.T) {
	policy := testPolicy()
	policy.MaxActiveLeadsBalance = 10

	full := testAgent("full", 10)
	free := testAgent("free", 2)
	pool := []domain.Agent{full, free}

	for i := 0; i < 5; i++ {
		agent, ok := NextAgent(pool, uuid.Nil, domain.Lead{}, policy)
		if !ok {
			t.Fatal("expected an eligible agent")
		}
		if agent.ID == full.ID {
			t.Fatal("selected an agent at the balance cap")
		}
	}
}

func TestNextAgentNoneEligible(t *testing.T) {
	policy := testPolicy()
	policy.MaxActiveLeadsBalance = 5

	pool := []domain.Agent{testAgent("a", 5), testAgent("b", 7)}
	if _, ok := NextAgent(pool, uuid.Nil, domain.Lead{}, policy); ok {
		t.Fatal("expected no eligible agent")
	}
}

func TestNextAgentDailyLimit(t *testing.T) {
	policy := testPolicy()
	policy.LeadsPerEmployeePerDay = 3

	a := testAgent("a", 0)
	a.AssignedToday = 3
	b := testAgent("b", 0)
	b.AssignedToday = 1
	pool := []domain.Agent{a, b}

	agent, ok := NextAgent(pool, uuid.Nil, domain.Lead{}, policy)
	if !ok {
		t.Fatal("expected an eligible agent")
	}
	if agent.ID != b.ID {
		t.Fatalf("selected agent at daily limit, want %s", b.Name)
	}
}

func TestNextAgentUnknownCursorStartsAtHead(t *testing.T) {
	pool := []domain.Agent{testAgent("a", 0), testAgent("b", 0)}
	policy := testPolicy()

	agent, ok := NextAgent(pool, uuid.New(), domain.Lead{}, policy)
	if !ok {
		t.Fatal("expected an eligible agent")
	}
	if agent.ID != pool[0].ID {
		t.Fatal("rotation with an unknown cursor should start at the pool head")
	}
}

func TestNextAgentHighPriorityPrefersLowBalance(t *testing.T) {
	policy := testPolicy()
	policy.PriorityHandling = true

	// Balances 2, 8, 9, 10: the lowest quartile holds only the first agent.
	light := testAgent("light", 2)
	pool := []domain.Agent{testAgent("h1", 8), light, testAgent("h2", 9), testAgent("h3", 10)}

	lead := domain.Lead{Priority: domain.PriorityHigh}
	agent, ok := NextAgent(pool, uuid.Nil, lead, policy)
	if !ok {
		t.Fatal("expected an eligible agent")
	}
	if agent.ID != light.ID {
		t.Fatalf("high-priority lead went to %s, want the least loaded agent", agent.Name)
	}
}

func TestNextAgentPriorityHandlingOffIgnoresBalance(t *testing.T) {
	policy := testPolicy()
	policy.PriorityHandling = false

	heavy := testAgent("heavy", 50)
	pool := []domain.Agent{heavy, testAgent("light", 1), testAgent("l2", 1), testAgent("l3", 1)}

	lead := domain.Lead{Priority: domain.PriorityHigh}
	agent, ok := NextAgent(pool, uuid.Nil, lead, policy)
	if !ok {
		t.Fatal("expected an eligible agent")
	}
	if agent.ID != heavy.ID {
		t.Fatal("with priority handling off, rotation order should win")
	}
}

func TestLowestQuartileSmallPool(t *testing.T) {
	pool := []domain.Agent{testAgent("a", 9), testAgent("b", 1)}
	if got := lowestQuartile(pool); len(got) != 2 {
		t.Fatalf("pools under four agents should not be restricted, got %d", len(got))
	}
}
