// Package transport defines the request and response shapes for the
// assignment API.
package transport

import (
	"strings"
	"time"

	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// PolicyRequest replaces the tenant's assignment policy wholesale.
type PolicyRequest struct {
	Mode                   string `json:"mode" validate:"required,oneof=manual auto"`
	LeadsPerEmployeePerDay int    `json:"leadsPerEmployeePerDay" validate:"min=0"`
	MaxActiveLeadsBalance  int    `json:"maxActiveLeadsBalance" validate:"min=0"`
	// RevertTime accepts either an hour count ("24") or a coarse label
	// ("24 Hours", "1 Month", "3 Months") as sent by older clients.
	RevertTime                 string `json:"revertTime" validate:"required"`
	LoadBalancingStrategy      string `json:"loadBalancingStrategy" validate:"required,oneof=round_robin"`
	PriorityHandling           bool   `json:"priorityHandling"`
	MaxCallAttempts            int    `json:"maxCallAttempts" validate:"min=0"`
	CallTimeGapMinutes         int    `json:"callTimeGapMinutes" validate:"min=0"`
	AutoDisqualification       bool   `json:"autoDisqualification"`
	ReassignmentOnDisqualified bool   `json:"reassignmentOnDisqualified"`
	MaxReassignmentLimit       int    `json:"maxReassignmentLimit" validate:"min=0"`
}

// revertTimeHours maps the loose client labels onto hour counts.
var revertTimeHours = map[string]int{
	"24 hours": 24,
	"48 hours": 48,
	"72 hours": 72,
	"1 week":   7 * 24,
	"2 weeks":  14 * 24,
	"1 month":  30 * 24,
	"3 months": 90 * 24,
}

// ParseRevertTime converts the wire value into hours.
func ParseRevertTime(s string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if hours, ok := revertTimeHours[normalized]; ok {
		return hours, nil
	}
	if d, err := time.ParseDuration(normalized); err == nil && d > 0 {
		return int(d / time.Hour), nil
	}
	var hours int
	for _, c := range normalized {
		if c < '0' || c > '9' {
			return 0, apperr.FieldValidation("revertTime", "unrecognized revert time "+s)
		}
		hours = hours*10 + int(c-'0')
	}
	if normalized == "" {
		return 0, apperr.FieldValidation("revertTime", "revert time is required")
	}
	return hours, nil
}

// ToDomain builds the policy the request describes.
func (r PolicyRequest) ToDomain(tenantID uuid.UUID) (domain.AssignmentPolicy, error) {
	hours, err := ParseRevertTime(r.RevertTime)
	if err != nil {
		return domain.AssignmentPolicy{}, err
	}
	return domain.AssignmentPolicy{
		TenantID:                   tenantID,
		Mode:                       domain.AssignmentMode(r.Mode),
		LeadsPerEmployeePerDay:     r.LeadsPerEmployeePerDay,
		MaxActiveLeadsBalance:      r.MaxActiveLeadsBalance,
		RevertTimeHours:            hours,
		LoadBalancingStrategy:      domain.BalancingStrategy(r.LoadBalancingStrategy),
		PriorityHandling:           r.PriorityHandling,
		MaxCallAttempts:            r.MaxCallAttempts,
		CallTimeGapMinutes:         r.CallTimeGapMinutes,
		AutoDisqualification:       r.AutoDisqualification,
		ReassignmentOnDisqualified: r.ReassignmentOnDisqualified,
		MaxReassignmentLimit:       r.MaxReassignmentLimit,
	}, nil
}

// PolicyResponse mirrors the stored policy.
type PolicyResponse struct {
	Mode                       string    `json:"mode"`
	LeadsPerEmployeePerDay     int       `json:"leadsPerEmployeePerDay"`
	MaxActiveLeadsBalance      int       `json:"maxActiveLeadsBalance"`
	RevertTimeHours            int       `json:"revertTimeHours"`
	LoadBalancingStrategy      string    `json:"loadBalancingStrategy"`
	PriorityHandling           bool      `json:"priorityHandling"`
	MaxCallAttempts            int       `json:"maxCallAttempts"`
	CallTimeGapMinutes         int       `json:"callTimeGapMinutes"`
	AutoDisqualification       bool      `json:"autoDisqualification"`
	ReassignmentOnDisqualified bool      `json:"reassignmentOnDisqualified"`
	MaxReassignmentLimit       int       `json:"maxReassignmentLimit"`
	UpdatedAt                  time.Time `json:"updatedAt"`
}

// FromPolicy converts a domain policy into its wire shape.
func FromPolicy(p domain.AssignmentPolicy) PolicyResponse {
	return PolicyResponse{
		Mode:                       string(p.Mode),
		LeadsPerEmployeePerDay:     p.LeadsPerEmployeePerDay,
		MaxActiveLeadsBalance:      p.MaxActiveLeadsBalance,
		RevertTimeHours:            p.RevertTimeHours,
		LoadBalancingStrategy:      string(p.LoadBalancingStrategy),
		PriorityHandling:           p.PriorityHandling,
		MaxCallAttempts:            p.MaxCallAttempts,
		CallTimeGapMinutes:         p.CallTimeGapMinutes,
		AutoDisqualification:       p.AutoDisqualification,
		ReassignmentOnDisqualified: p.ReassignmentOnDisqualified,
		MaxReassignmentLimit:       p.MaxReassignmentLimit,
		UpdatedAt:                  p.UpdatedAt,
	}
}

// ManualAssignRequest spreads a batch of leads over a selected set of agents
// and teams. At least one employee or team must be selected.
type ManualAssignRequest struct {
	LeadIDs     []uuid.UUID `json:"leadIds" validate:"required,min=1,dive,required"`
	EmployeeIDs []uuid.UUID `json:"employeeIds" validate:"omitempty,dive,required"`
	TeamIDs     []uuid.UUID `json:"teamIds" validate:"omitempty,dive,required"`
}

// AssignedLead names one lead and the agent it went to.
type AssignedLead struct {
	LeadID  uuid.UUID `json:"leadId"`
	AgentID uuid.UUID `json:"agentId"`
}

// ManualAssignResult reports the per-lead outcome of a manual batch. Capacity
// overruns are advisory; the warnings field carries them without blocking.
type ManualAssignResult struct {
	Assigned []AssignedLead      `json:"assigned"`
	Failed   []ManualAssignError `json:"failed"`
	Warnings []string            `json:"warnings,omitempty"`
}

// ManualAssignError names one lead that could not be assigned.
type ManualAssignError struct {
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

// DistributeResult summarizes one manual trigger of the distribution pass.
type DistributeResult struct {
	Assigned  int `json:"assigned"`
	Remaining int `json:"remaining"`
}

// LogEntryResponse is one row of the assignment audit log.
type LogEntryResponse struct {
	ID             int64      `json:"id"`
	LeadID         uuid.UUID  `json:"leadId"`
	AgentID        uuid.UUID  `json:"agentId"`
	EmployeeName   string     `json:"employeeName"`
	ReassignedFrom string     `json:"reassignedFrom"`
	AssignedByID   *uuid.UUID `json:"assignedById,omitempty"`
	AssignmentType string     `json:"assignmentType"`
	Reason         *string    `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// LogPageResponse is one page of the assignment log, newest entry last.
type LogPageResponse struct {
	Logs  []LogEntryResponse `json:"logs"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int64              `json:"total"`
}

// FromLogEntries converts repository log rows into their wire shape.
func FromLogEntries(entries []repository.LogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryResponse{
			ID:             e.ID,
			LeadID:         e.LeadID,
			AgentID:        e.AgentID,
			EmployeeName:   e.EmployeeName,
			ReassignedFrom: e.ReassignedFrom,
			AssignedByID:   e.AssignedByID,
			AssignmentType: string(e.AssignmentType),
			Reason:         e.Reason,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}
