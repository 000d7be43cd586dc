// Package domain models campaigns: their lifecycle, audience selection, and
// the per-member hierarchy overrides the campaign distributor applies.
package domain

import (
	"time"

	leads "leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Status is the campaign lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusEnded     Status = "ended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusPaused, StatusEnded:
		return true
	}
	return false
}

// CanTransitionTo enforces scheduled→active→{paused↔active}→ended. Ended is
// terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusScheduled:
		return next == StatusActive || next == StatusEnded
	case StatusActive:
		return next == StatusPaused || next == StatusEnded
	case StatusPaused:
		return next == StatusActive || next == StatusEnded
	}
	return false
}

// LimitType selects whether the campaign caps daily lead intake.
type LimitType string

const (
	LimitUnlimited LimitType = "Unlimited"
	LimitFixed     LimitType = "Fixed"
)

// AudienceType selects whether the campaign targets teams or individuals.
type AudienceType string

const (
	AudienceTeam       AudienceType = "Team"
	AudienceIndividual AudienceType = "Individual"
)

// TimingType selects when the campaign accepts leads.
type TimingType string

const (
	TimingAlwaysOn     TimingType = "always_on"
	TimingWorkingHours TimingType = "working_hours"
)

// MemberOverride shadows the tenant assignment policy for one campaign member.
type MemberOverride struct {
	MaxBalance             *int `json:"maxBalance,omitempty"`
	DailyLimit             *int `json:"dailyLimit,omitempty"`
	DailyLimitUnlimited    bool `json:"dailyLimitUnlimited"`
	IsInvestigationOfficer bool `json:"isInvestigationOfficer"`
}

// HierarchySettings maps team id to member id to that member's override.
type HierarchySettings map[uuid.UUID]map[uuid.UUID]MemberOverride

// Override returns the member's override, if any, searching all teams.
func (h HierarchySettings) Override(memberID uuid.UUID) (MemberOverride, bool) {
	for _, members := range h {
		if o, ok := members[memberID]; ok {
			return o, true
		}
	}
	return MemberOverride{}, false
}

// Campaign is a lead source with its own restricted distribution pool.
type Campaign struct {
	ID       uuid.UUID
	TenantID uuid.UUID

	Name   string
	Source string

	StartDate time.Time
	EndDate   time.Time

	TimingType TimingType

	LimitType   LimitType
	LeadsPerDay int

	AudienceType      AudienceType
	SelectedAudiences []uuid.UUID
	HierarchySettings HierarchySettings

	Status Status

	// LeadsGenerated counts leads attributed to the campaign. Monotone;
	// incremented exactly once per attributed lead.
	LeadsGenerated int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate rejects malformed campaigns at the write boundary.
func (c Campaign) Validate() error {
	if c.Name == "" {
		return apperr.FieldValidation("name", "campaign name is required")
	}
	if !c.Status.Valid() {
		return apperr.FieldValidation("status", "unknown campaign status")
	}
	switch c.LimitType {
	case LimitUnlimited, LimitFixed:
	default:
		return apperr.FieldValidation("leadLimitType", "lead limit type must be Unlimited or Fixed")
	}
	if c.LimitType == LimitFixed && c.LeadsPerDay < 1 {
		return apperr.FieldValidation("leadsPerDay", "a fixed limit requires leadsPerDay of at least 1")
	}
	switch c.AudienceType {
	case AudienceTeam, AudienceIndividual:
	default:
		return apperr.FieldValidation("audienceType", "audience type must be Team or Individual")
	}
	if len(c.SelectedAudiences) == 0 {
		return apperr.FieldValidation("selectedAudiences", "at least one audience is required")
	}
	switch c.TimingType {
	case TimingAlwaysOn, TimingWorkingHours:
	default:
		return apperr.FieldValidation("timingType", "timing type must be always_on or working_hours")
	}
	if !c.EndDate.IsZero() && !c.StartDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return apperr.FieldValidation("endDate", "campaign window ends before it starts")
	}
	return nil
}

// ApplyOverrides returns a copy of the agent with the campaign's member
// override shadowing the tenant-wide settings.
func (c Campaign) ApplyOverrides(agent leads.Agent) leads.Agent {
	o, ok := c.HierarchySettings.Override(agent.ID)
	if !ok {
		return agent
	}
	if o.MaxBalance != nil {
		agent.MaxActiveBalance = o.MaxBalance
	}
	if o.DailyLimit != nil {
		agent.DailyLimit = o.DailyLimit
	}
	agent.DailyLimitUnlimited = o.DailyLimitUnlimited
	agent.IsInvestigationOfficer = o.IsInvestigationOfficer
	return agent
}
