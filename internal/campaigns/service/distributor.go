package service

import (
	"sort"

	campdomain "leadflow_backend/internal/campaigns/domain"
	leads "leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// buildLevels groups the campaign pool by hierarchy level, ascending. Within
// a level investigation officers come before general agents; directory order
// is preserved otherwise.
func buildLevels(campaign campdomain.Campaign, pool []leads.Agent) [][]leads.Agent {
	byLevel := make(map[int][]leads.Agent)
	for _, a := range pool {
		a = campaign.ApplyOverrides(a)
		byLevel[a.HierarchyLevel] = append(byLevel[a.HierarchyLevel], a)
	}

	levels := make([]int, 0, len(byLevel))
	for lvl := range byLevel {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)

	out := make([][]leads.Agent, 0, len(levels))
	for _, lvl := range levels {
		agents := byLevel[lvl]
		sort.SliceStable(agents, func(i, j int) bool {
			return agents[i].IsInvestigationOfficer && !agents[j].IsInvestigationOfficer
		})
		out = append(out, agents)
	}
	return out
}

// nextCampaignAgent picks from the first hierarchy level holding an eligible
// candidate, rotating round robin after lastAssigned within that level. Lower
// levels are escalation chains: a level is only consulted when every level
// above it has no capacity.
func nextCampaignAgent(levels [][]leads.Agent, lastAssigned uuid.UUID, policy leads.AssignmentPolicy) (leads.Agent, bool) {
	for _, level := range levels {
		start := 0
		for i, a := range level {
			if a.ID == lastAssigned {
				start = i + 1
				break
			}
		}
		for i := 0; i < len(level); i++ {
			agent := level[(start+i)%len(level)]
			if agent.Eligible(policy) {
				return agent, true
			}
		}
	}
	return leads.Agent{}, false
}

// noteAssignment bumps in-memory load counters so capacity holds within one
// distribution pass.
func noteAssignment(levels [][]leads.Agent, agentID uuid.UUID) {
	for _, level := range levels {
		for i := range level {
			if level[i].ID == agentID {
				level[i].ActiveBalance++
				level[i].AssignedToday++
				return
			}
		}
	}
}
