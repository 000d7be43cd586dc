// Package transport defines the campaign API's wire shapes.
package transport

import (
	"time"

	"leadflow_backend/internal/campaigns/domain"

	"github.com/google/uuid"
)

// MemberOverrideDTO mirrors domain.MemberOverride on the wire.
type MemberOverrideDTO struct {
	MaxBalance             *int `json:"maxBalance,omitempty"`
	DailyLimit             *int `json:"dailyLimit,omitempty"`
	DailyLimitUnlimited    bool `json:"dailyLimitUnlimited"`
	IsInvestigationOfficer bool `json:"isInvestigationOfficer"`
}

// CampaignRequest creates or replaces a campaign's configuration.
type CampaignRequest struct {
	Name   string `json:"name" validate:"required"`
	Source string `json:"source"`

	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`

	TimingType string `json:"timingType" validate:"required,oneof=always_on working_hours"`

	LeadLimitType string `json:"leadLimitType" validate:"required,oneof=Unlimited Fixed"`
	LeadsPerDay   int    `json:"leadsPerDay" validate:"min=0"`

	AudienceType      string      `json:"audienceType" validate:"required,oneof=Team Individual"`
	SelectedAudiences []uuid.UUID `json:"selectedAudiences" validate:"required,min=1,dive,required"`

	HierarchySettings map[uuid.UUID]map[uuid.UUID]MemberOverrideDTO `json:"hierarchySettings"`
}

// ToDomain builds the campaign the request describes. New campaigns start
// scheduled.
func (r CampaignRequest) ToDomain(tenantID uuid.UUID) domain.Campaign {
	settings := make(domain.HierarchySettings, len(r.HierarchySettings))
	for teamID, members := range r.HierarchySettings {
		settings[teamID] = make(map[uuid.UUID]domain.MemberOverride, len(members))
		for memberID, o := range members {
			settings[teamID][memberID] = domain.MemberOverride{
				MaxBalance:             o.MaxBalance,
				DailyLimit:             o.DailyLimit,
				DailyLimitUnlimited:    o.DailyLimitUnlimited,
				IsInvestigationOfficer: o.IsInvestigationOfficer,
			}
		}
	}
	return domain.Campaign{
		TenantID:          tenantID,
		Name:              r.Name,
		Source:            r.Source,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		TimingType:        domain.TimingType(r.TimingType),
		LimitType:         domain.LimitType(r.LeadLimitType),
		LeadsPerDay:       r.LeadsPerDay,
		AudienceType:      domain.AudienceType(r.AudienceType),
		SelectedAudiences: r.SelectedAudiences,
		HierarchySettings: settings,
		Status:            domain.StatusScheduled,
	}
}

// StatusRequest transitions a campaign's lifecycle state.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled active paused ended"`
}

// CampaignResponse mirrors a stored campaign; leadsGenerated is the "hits"
// counter the UI shows live.
type CampaignResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Source string    `json:"source"`

	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	TimingType string `json:"timingType"`

	LeadLimitType string `json:"leadLimitType"`
	LeadsPerDay   int    `json:"leadsPerDay"`

	AudienceType      string      `json:"audienceType"`
	SelectedAudiences []uuid.UUID `json:"selectedAudiences"`

	HierarchySettings map[uuid.UUID]map[uuid.UUID]MemberOverrideDTO `json:"hierarchySettings,omitempty"`

	Status         string    `json:"status"`
	LeadsGenerated int       `json:"leadsGenerated"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FromCampaign converts a domain campaign into its wire shape.
func FromCampaign(c domain.Campaign) CampaignResponse {
	var settings map[uuid.UUID]map[uuid.UUID]MemberOverrideDTO
	if len(c.HierarchySettings) > 0 {
		settings = make(map[uuid.UUID]map[uuid.UUID]MemberOverrideDTO, len(c.HierarchySettings))
		for teamID, members := range c.HierarchySettings {
			settings[teamID] = make(map[uuid.UUID]MemberOverrideDTO, len(members))
			for memberID, o := range members {
				settings[teamID][memberID] = MemberOverrideDTO{
					MaxBalance:             o.MaxBalance,
					DailyLimit:             o.DailyLimit,
					DailyLimitUnlimited:    o.DailyLimitUnlimited,
					IsInvestigationOfficer: o.IsInvestigationOfficer,
				}
			}
		}
	}
	return CampaignResponse{
		ID:                c.ID,
		Name:              c.Name,
		Source:            c.Source,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		TimingType:        string(c.TimingType),
		LeadLimitType:     string(c.LimitType),
		LeadsPerDay:       c.LeadsPerDay,
		AudienceType:      string(c.AudienceType),
		SelectedAudiences: c.SelectedAudiences,
		HierarchySettings: settings,
		Status:            string(c.Status),
		LeadsGenerated:    c.LeadsGenerated,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// FromCampaigns converts a list of campaigns.
func FromCampaigns(cs []domain.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromCampaign(c))
	}
	return out
}
