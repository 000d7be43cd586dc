package domain

import (
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// AssignmentMode selects how new leads receive owners.
type AssignmentMode string

const (
	ModeManual AssignmentMode = "manual"
	ModeAuto   AssignmentMode = "auto"
)

// BalancingStrategy names the distribution strategy. Round robin is the only
// implemented strategy; the field exists so the settings payload round-trips.
type BalancingStrategy string

const StrategyRoundRobin BalancingStrategy = "round_robin"

// AssignmentPolicy is the tenant-wide tunable configuration read by the
// distribution scheduler and the call-attempt state machine. Exactly one
// policy exists per tenant; updates replace the whole object.
type AssignmentPolicy struct {
	TenantID uuid.UUID

	Mode                   AssignmentMode
	LeadsPerEmployeePerDay int
	MaxActiveLeadsBalance  int
	RevertTimeHours        int
	LoadBalancingStrategy  BalancingStrategy
	PriorityHandling       bool

	MaxCallAttempts    int
	CallTimeGapMinutes int

	AutoDisqualification       bool
	ReassignmentOnDisqualified bool
	MaxReassignmentLimit       int

	UpdatedAt time.Time
}

// DefaultPolicy is the policy a tenant starts with before the settings screen
// has ever been saved.
func DefaultPolicy(tenantID uuid.UUID) AssignmentPolicy {
	return AssignmentPolicy{
		TenantID:               tenantID,
		Mode:                   ModeManual,
		LeadsPerEmployeePerDay: 50,
		MaxActiveLeadsBalance:  100,
		RevertTimeHours:        24,
		LoadBalancingStrategy:  StrategyRoundRobin,
		MaxCallAttempts:        3,
	}
}

// Validate rejects misconfigured policies at the settings boundary. Invalid
// policies are never silently clamped.
func (p AssignmentPolicy) Validate() error {
	if p.Mode != ModeManual && p.Mode != ModeAuto {
		return apperr.FieldValidation("mode", "mode must be manual or auto")
	}
	if p.LeadsPerEmployeePerDay < 0 {
		return apperr.FieldValidation("leadsPerEmployeePerDay", "daily limit cannot be negative")
	}
	if p.MaxActiveLeadsBalance < 0 {
		return apperr.FieldValidation("maxActiveLeadsBalance", "active balance cap cannot be negative")
	}
	if p.RevertTimeHours < 0 {
		return apperr.FieldValidation("revertTimeHours", "revert time cannot be negative")
	}
	if p.LoadBalancingStrategy != StrategyRoundRobin {
		return apperr.FieldValidation("loadBalancingStrategy", "unsupported balancing strategy")
	}
	if p.MaxCallAttempts < 1 {
		return apperr.FieldValidation("maxCallAttempts", "max call attempts must be at least 1")
	}
	if p.CallTimeGapMinutes < 0 {
		return apperr.FieldValidation("callTimeGapMinutes", "call time gap cannot be negative")
	}
	if p.MaxReassignmentLimit < 0 {
		return apperr.FieldValidation("maxReassignmentLimit", "reassignment limit cannot be negative")
	}
	if !p.ReassignmentOnDisqualified && p.MaxReassignmentLimit > 0 {
		return apperr.FieldValidation("maxReassignmentLimit", "reassignment limit set while reassignment is disabled")
	}
	return nil
}

// AutoRulesActive reports whether auto-disqualification and reassignment may
// fire. The settings screen lets admins toggle those flags in manual mode,
// but they only govern transitions while the tenant runs in auto mode.
func (p AssignmentPolicy) AutoRulesActive() bool {
	return p.Mode == ModeAuto
}

// RevertTime returns the ownership revert window as a duration.
func (p AssignmentPolicy) RevertTime() time.Duration {
	return time.Duration(p.RevertTimeHours) * time.Hour
}

// CallGap returns the minimum gap between call attempts on one lead.
func (p AssignmentPolicy) CallGap() time.Duration {
	return time.Duration(p.CallTimeGapMinutes) * time.Minute
}
