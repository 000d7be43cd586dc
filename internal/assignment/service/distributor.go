package service

import (
	"sort"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// defaultPoolKey names the tenant-wide rotation cursor. Campaign pools keep
// their own cursors keyed by campaign id.
const defaultPoolKey = "tenant"

// NextAgent picks the next eligible agent after lastAssigned in pool order.
// The pool must already be in stable order (hierarchy level, then join date).
// lastAssigned may be uuid.Nil or an agent no longer in the pool; either way
// rotation starts from the head. The second return is false when no agent in
// the pool has capacity.
func NextAgent(pool []domain.Agent, lastAssigned uuid.UUID, lead domain.Lead, policy domain.AssignmentPolicy) (domain.Agent, bool) {
	candidates := pool
	if policy.PriorityHandling && lead.Priority == domain.PriorityHigh {
		if restricted := lowestQuartile(pool); len(restricted) > 0 {
			candidates = restricted
		}
	}

	start := 0
	for i, a := range candidates {
		if a.ID == lastAssigned {
			start = i + 1
			break
		}
	}

	for i := 0; i < len(candidates); i++ {
		agent := candidates[(start+i)%len(candidates)]
		if agent.Eligible(policy) {
			return agent, true
		}
	}
	return domain.Agent{}, false
}

// lowestQuartile restricts the pool to agents whose active balance sits at or
// below the pool's 25th percentile, keeping the original pool order. With
// fewer than four agents the whole pool qualifies.
func lowestQuartile(pool []domain.Agent) []domain.Agent {
	if len(pool) < 4 {
		return pool
	}
	balances := make([]int, len(pool))
	for i, a := range pool {
		balances[i] = a.ActiveBalance
	}
	sort.Ints(balances)
	threshold := balances[(len(balances)-1)/4]

	restricted := make([]domain.Agent, 0, len(pool)/4+1)
	for _, a := range pool {
		if a.ActiveBalance <= threshold {
			restricted = append(restricted, a)
		}
	}
	return restricted
}

// noteAssignment bumps the in-memory load counters of the chosen agent so
// capacity holds within a single distribution pass, before the derived
// counters are re-read from storage.
func noteAssignment(pool []domain.Agent, agentID uuid.UUID) {
	for i := range pool {
		if pool[i].ID == agentID {
			pool[i].ActiveBalance++
			pool[i].AssignedToday++
			return
		}
	}
}
