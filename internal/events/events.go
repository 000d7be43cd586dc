// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus is a convenience re-export from platform/events.
var NewInMemoryBus = events.NewInMemoryBus

// =============================================================================
// Assignment Domain Events
// =============================================================================

// LeadAssigned is published when the distribution scheduler or an
// administrator gives a lead an owner.
type LeadAssigned struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	TenantID       uuid.UUID  `json:"tenantId"`
	PreviousAgent  *uuid.UUID `json:"previousAgent,omitempty"`
	NewAgent       uuid.UUID  `json:"newAgent"`
	AssignmentType string     `json:"assignmentType"` // manual, auto, system
	AssignedBy     string     `json:"assignedBy"`
}

func (e LeadAssigned) EventName() string { return "assignment.lead.assigned" }

// LeadReclaimed is published when the reclamation sweeper strips ownership
// from a stale lead and returns it to the distribution pool.
type LeadReclaimed struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	TenantID      uuid.UUID `json:"tenantId"`
	PreviousAgent uuid.UUID `json:"previousAgent"`
}

func (e LeadReclaimed) EventName() string { return "assignment.lead.reclaimed" }

// LeadPendingAssignment is published when a distribution pass could not find
// an eligible agent. This is a normal outcome, not an error.
type LeadPendingAssignment struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Reason   string    `json:"reason"`
}

func (e LeadPendingAssignment) EventName() string { return "assignment.lead.pending" }

// =============================================================================
// Call Domain Events
// =============================================================================

// CallRecorded is published after every accepted call-outcome submission.
type CallRecorded struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	TenantID     uuid.UUID `json:"tenantId"`
	AgentID      uuid.UUID `json:"agentId"`
	Response     string    `json:"response"`
	ResultingTag string    `json:"resultingTag"`
	CallCount    int       `json:"callCount"`
}

func (e CallRecorded) EventName() string { return "calls.call.recorded" }

// LeadDropped is published when a lead reaches the Dropped terminal state,
// whether by explicit drop or auto-disqualification.
type LeadDropped struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Reason   string    `json:"reason"`
	AutoRule bool      `json:"autoRule"`
}

func (e LeadDropped) EventName() string { return "calls.lead.dropped" }

// =============================================================================
// Campaign Domain Events
// =============================================================================

// CampaignHit is published whenever the campaign distributor attributes a new
// lead to a campaign. The UI uses it for live hit counters.
type CampaignHit struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	TenantID   uuid.UUID `json:"tenantId"`
	NewHits    int       `json:"newHits"`
}

func (e CampaignHit) EventName() string { return "campaign_update" }

// CampaignStatusChanged is published on campaign status transitions.
type CampaignStatusChanged struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	TenantID   uuid.UUID `json:"tenantId"`
	OldStatus  string    `json:"oldStatus"`
	NewStatus  string    `json:"newStatus"`
}

func (e CampaignStatusChanged) EventName() string { return "campaigns.status.changed" }
