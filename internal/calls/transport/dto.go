// Package transport defines the wire shapes of the call-outcome API.
package transport

import (
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// HitCallRequest is one call-outcome submission from the call popup.
type HitCallRequest struct {
	Status      string `json:"status" validate:"required,oneof=connected not_connected"`
	FinalAction string `json:"finalAction" validate:"required,oneof=follow_up drop"`

	NotConnectedReason string     `json:"notConnectedReason"`
	DropReason         string     `json:"dropReason"`
	Remarks            string     `json:"remarks"`
	Priority           string     `json:"priority"`
	NextCallAt         *time.Time `json:"nextCallAt"`
	DurationMin        int        `json:"durationMin"`

	// Version is the lead version the client last saw. When set, a stale
	// value is rejected before the state machine runs.
	Version *int64 `json:"version"`
}

// ToDomain converts the submission into the state machine's input. Negative
// durations from drifted client timers are clamped to zero rather than
// rejected.
func (r HitCallRequest) ToDomain() domain.CallOutcome {
	duration := r.DurationMin
	if duration < 0 {
		duration = 0
	}
	return domain.CallOutcome{
		Response:           domain.CallResponse(r.Status),
		FinalAction:        domain.FinalAction(r.FinalAction),
		NotConnectedReason: r.NotConnectedReason,
		DropReason:         r.DropReason,
		Remarks:            r.Remarks,
		Priority:           domain.Priority(r.Priority),
		NextCallAt:         r.NextCallAt,
		DurationMin:        duration,
	}
}

// HitCallResponse reports the lead's state after the submission. Warnings are
// advisory (schedule collisions); the submission already succeeded.
type HitCallResponse struct {
	LeadID            uuid.UUID  `json:"leadId"`
	Tag               string     `json:"tag"`
	CallCount         int        `json:"callCount"`
	ReassignmentCount int        `json:"reassignmentCount"`
	Priority          string     `json:"priority"`
	NextCallAt        *time.Time `json:"nextCallAt,omitempty"`
	OwnerAgentID      *uuid.UUID `json:"ownerAgentId,omitempty"`
	Version           int64      `json:"version"`
	Warnings          []string   `json:"warnings,omitempty"`
}

// FromLead builds the response from the updated lead.
func FromLead(lead domain.Lead, warnings []string) HitCallResponse {
	return HitCallResponse{
		LeadID:            lead.ID,
		Tag:               string(lead.Tag),
		CallCount:         lead.CallCount,
		ReassignmentCount: lead.ReassignmentCount,
		Priority:          string(lead.Priority),
		NextCallAt:        lead.NextCallAt,
		OwnerAgentID:      lead.OwnerAgentID,
		Version:           lead.Version,
		Warnings:          warnings,
	}
}
