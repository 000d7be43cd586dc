// Package transport defines the lead intake wire shapes.
package transport

import (
	"time"

	"leadflow_backend/internal/intake/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest registers one incoming lead.
type CreateLeadRequest struct {
	Name       string     `json:"name" validate:"required"`
	Phone      string     `json:"phone" validate:"required"`
	Email      string     `json:"email" validate:"omitempty,email"`
	Source     string     `json:"source"`
	Priority   string     `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	CampaignID *uuid.UUID `json:"campaignId"`
}

// LeadResponse is the engine's view of a lead plus its contact fields.
type LeadResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email,omitempty"`
	Source     string     `json:"source,omitempty"`
	CampaignID *uuid.UUID `json:"campaignId,omitempty"`

	OwnerAgentID *uuid.UUID `json:"ownerAgentId,omitempty"`
	Tag          string     `json:"tag"`
	Priority     string     `json:"priority,omitempty"`

	CallCount         int        `json:"callCount"`
	ReassignmentCount int        `json:"reassignmentCount"`
	NextCallAt        *time.Time `json:"nextCallAt,omitempty"`
	LastCallAt        *time.Time `json:"lastCallAt,omitempty"`
	Version           int64      `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromRecord builds the response from a stored lead.
func FromRecord(rec repository.LeadRecord) LeadResponse {
	return LeadResponse{
		ID:                rec.ID,
		Name:              rec.Name,
		Phone:             rec.Phone,
		Email:             rec.Email,
		Source:            rec.Source,
		CampaignID:        rec.CampaignID,
		OwnerAgentID:      rec.OwnerAgentID,
		Tag:               string(rec.Tag),
		Priority:          string(rec.Priority),
		CallCount:         rec.CallCount,
		ReassignmentCount: rec.ReassignmentCount,
		NextCallAt:        rec.NextCallAt,
		LastCallAt:        rec.LastCallAt,
		Version:           rec.Version,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}
