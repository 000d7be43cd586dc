package service

import (
	"testing"

	campdomain "leadflow_backend/internal/campaigns/domain"
	leads "leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levelAgent(name string, level int, investigator bool) leads.Agent {
	return leads.Agent{
		ID:                     uuid.New(),
		Name:                   name,
		HierarchyLevel:         level,
		IsInvestigationOfficer: investigator,
	}
}

func autoPolicy() leads.AssignmentPolicy {
	p := leads.DefaultPolicy(uuid.New())
	p.Mode = leads.ModeAuto
	return p
}

func TestBuildLevelsOrdersInvestigatorsFirst(t *testing.T) {
	campaign := campdomain.Campaign{}
	general := levelAgent("general", 1, false)
	officer := levelAgent("officer", 1, true)
	second := levelAgent("second", 2, false)

	levels := buildLevels(campaign, []leads.Agent{general, officer, second})
	require.Len(t, levels, 2)
	require.Len(t, levels[0], 2)
	assert.Equal(t, officer.ID, levels[0][0].ID, "investigation officers lead their level")
	assert.Equal(t, general.ID, levels[0][1].ID)
	assert.Equal(t, second.ID, levels[1][0].ID)
}

func TestNextCampaignAgentStaysInLevelWhileEligible(t *testing.T) {
	a := levelAgent("a", 1, false)
	b := levelAgent("b", 1, false)
	fallback := levelAgent("fallback", 2, false)
	levels := [][]leads.Agent{{a, b}, {fallback}}
	policy := autoPolicy()

	got, ok := nextCampaignAgent(levels, uuid.Nil, policy)
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)

	got, ok = nextCampaignAgent(levels, a.ID, policy)
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)

	// Wraps within the level instead of escalating.
	got, ok = nextCampaignAgent(levels, b.ID, policy)
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)
}

func TestNextCampaignAgentEscalatesWhenLevelExhausted(t *testing.T) {
	policy := autoPolicy()
	policy.MaxActiveLeadsBalance = 3

	full := levelAgent("full", 1, false)
	full.ActiveBalance = 3
	next := levelAgent("next", 2, false)
	levels := [][]leads.Agent{{full}, {next}}

	got, ok := nextCampaignAgent(levels, uuid.Nil, policy)
	require.True(t, ok)
	assert.Equal(t, next.ID, got.ID, "exhausted levels escalate to the next one")
}

func TestNextCampaignAgentNoCapacityAnywhere(t *testing.T) {
	policy := autoPolicy()
	policy.LeadsPerEmployeePerDay = 1

	a := levelAgent("a", 1, false)
	a.AssignedToday = 1
	b := levelAgent("b", 2, false)
	b.AssignedToday = 1

	_, ok := nextCampaignAgent([][]leads.Agent{{a}, {b}}, uuid.Nil, policy)
	assert.False(t, ok)
}

func TestBuildLevelsAppliesOverrides(t *testing.T) {
	teamID := uuid.New()
	member := levelAgent("member", 1, false)
	member.TeamID = &teamID

	daily := 2
	campaign := campdomain.Campaign{
		HierarchySettings: campdomain.HierarchySettings{
			teamID: {member.ID: {DailyLimit: &daily, IsInvestigationOfficer: true}},
		},
	}

	levels := buildLevels(campaign, []leads.Agent{member})
	require.Len(t, levels, 1)
	require.Len(t, levels[0], 1)
	require.NotNil(t, levels[0][0].DailyLimit)
	assert.Equal(t, 2, *levels[0][0].DailyLimit)
	assert.True(t, levels[0][0].IsInvestigationOfficer)
}
