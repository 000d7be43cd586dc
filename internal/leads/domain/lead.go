// Package domain holds the pure lead-lifecycle model shared by the
// distribution scheduler, the call-attempt state machine, and the
// reclamation sweeper. Nothing in this package touches storage or transport.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tag is the lifecycle bucket a lead sits in. The UI renders one list per tag.
type Tag string

const (
	TagNewLead      Tag = "NewLead"
	TagNotConnected Tag = "NotConnected"
	TagFollowUp     Tag = "FollowUp"
	TagTrending     Tag = "Trending"
	TagWon          Tag = "Won"
	TagDropped      Tag = "Dropped"
	TagDuplicate    Tag = "Duplicate"
	TagMissed       Tag = "Missed"
)

// Terminal reports whether the tag is a terminal state. Terminal leads do not
// count toward an agent's active balance and accept no further transitions.
func (t Tag) Terminal() bool {
	switch t {
	case TagWon, TagDropped, TagDuplicate:
		return true
	}
	return false
}

// Priority of a lead.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid reports whether p is a known priority value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Lead is the engine's view of a lead record. Fields the wider CRM tracks
// (contact details, notes, pipelines) are not modeled here.
type Lead struct {
	ID       uuid.UUID
	TenantID uuid.UUID

	// CampaignID is set when the lead was sourced from a campaign.
	CampaignID *uuid.UUID

	// OwnerAgentID is nil while the lead sits in the unassigned pool.
	// Ownership is exclusive: at most one agent owns a lead at any instant.
	OwnerAgentID *uuid.UUID

	// LeadOwner is a secondary reference maintained by lead intake.
	// Read-only to this engine.
	LeadOwner *string

	Tag      Tag
	Status   string
	Priority Priority

	// CallCount is monotonically non-decreasing.
	CallCount int

	// ReassignmentCount tracks completed disqualification-reassignment cycles.
	ReassignmentCount int

	NextCallAt *time.Time
	LastCallAt *time.Time

	// Version is the optimistic concurrency token. Every mutation bumps it;
	// writers that present a stale version lose with a retryable conflict.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assigned reports whether the lead currently has an owner.
func (l Lead) Assigned() bool {
	return l.OwnerAgentID != nil
}

// Agent is an employee as the distribution engine sees it: identity,
// hierarchy position, capacity overrides, and the derived load counters the
// eligibility filter consumes.
type Agent struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	TeamID   *uuid.UUID

	// HierarchyLevel orders campaign escalation chains; 1 is the top level.
	HierarchyLevel int

	// MaxActiveBalance overrides the tenant policy cap when set.
	MaxActiveBalance *int
	// DailyLimit overrides the tenant policy daily limit when set.
	DailyLimit *int
	// DailyLimitUnlimited exempts the agent from any daily limit.
	DailyLimitUnlimited    bool
	IsInvestigationOfficer bool

	// ActiveBalance is the count of owned leads not in a terminal tag.
	ActiveBalance int
	// AssignedToday is the count of assignments in the tenant-local calendar day.
	AssignedToday int
}

// EffectiveDailyLimit resolves the agent's daily limit against the tenant
// policy. A nil second return means unlimited.
func (a Agent) EffectiveDailyLimit(p AssignmentPolicy) (int, bool) {
	if a.DailyLimitUnlimited {
		return 0, false
	}
	if a.DailyLimit != nil {
		return *a.DailyLimit, true
	}
	if p.LeadsPerEmployeePerDay <= 0 {
		return 0, false
	}
	return p.LeadsPerEmployeePerDay, true
}

// EffectiveBalanceCap resolves the agent's active-balance cap against the
// tenant policy. The second return is false when the cap is unlimited.
func (a Agent) EffectiveBalanceCap(p AssignmentPolicy) (int, bool) {
	if a.MaxActiveBalance != nil {
		return *a.MaxActiveBalance, true
	}
	if p.MaxActiveLeadsBalance <= 0 {
		return 0, false
	}
	return p.MaxActiveLeadsBalance, true
}

// Eligible reports whether the agent can take one more lead under the policy.
func (a Agent) Eligible(p AssignmentPolicy) bool {
	if limit, capped := a.EffectiveDailyLimit(p); capped && a.AssignedToday >= limit {
		return false
	}
	if cap, capped := a.EffectiveBalanceCap(p); capped && a.ActiveBalance >= cap {
		return false
	}
	return true
}
