package domain

import (
	"testing"
	"time"

	leads "leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCampaign() Campaign {
	return Campaign{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		Name:              "spring push",
		StartDate:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		TimingType:        TimingAlwaysOn,
		LimitType:         LimitUnlimited,
		AudienceType:      AudienceIndividual,
		SelectedAudiences: []uuid.UUID{uuid.New()},
		Status:            StatusScheduled,
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusScheduled, StatusActive, true},
		{StatusScheduled, StatusEnded, true},
		{StatusScheduled, StatusPaused, false},
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusEnded, true},
		{StatusActive, StatusScheduled, false},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusEnded, true},
		{StatusEnded, StatusActive, false},
		{StatusEnded, StatusPaused, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCampaignValidate(t *testing.T) {
	c := validCampaign()
	require.NoError(t, c.Validate())

	noName := validCampaign()
	noName.Name = ""
	assert.Error(t, noName.Validate())

	fixedNoLimit := validCampaign()
	fixedNoLimit.LimitType = LimitFixed
	fixedNoLimit.LeadsPerDay = 0
	assert.Error(t, fixedNoLimit.Validate())

	noAudience := validCampaign()
	noAudience.SelectedAudiences = nil
	assert.Error(t, noAudience.Validate())

	backwardsWindow := validCampaign()
	backwardsWindow.EndDate = backwardsWindow.StartDate.Add(-time.Hour)
	assert.Error(t, backwardsWindow.Validate())
}

func TestApplyOverridesShadowsPolicy(t *testing.T) {
	teamID := uuid.New()
	agent := leads.Agent{ID: uuid.New(), TeamID: &teamID, HierarchyLevel: 2}

	maxBalance := 5
	c := validCampaign()
	c.HierarchySettings = HierarchySettings{
		teamID: {
			agent.ID: {MaxBalance: &maxBalance, IsInvestigationOfficer: true},
		},
	}

	overridden := c.ApplyOverrides(agent)
	require.NotNil(t, overridden.MaxActiveBalance)
	assert.Equal(t, 5, *overridden.MaxActiveBalance)
	assert.True(t, overridden.IsInvestigationOfficer)

	// Agents without an override pass through untouched.
	other := leads.Agent{ID: uuid.New()}
	assert.Equal(t, other, c.ApplyOverrides(other))
}
