// Package repository provides data access for campaigns and their daily
// distribution counters.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadflow_backend/internal/campaigns/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCampaignNotFound = errors.New("campaign not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `
	id, tenant_id, name, source, start_date, end_date, timing_type,
	lead_limit_type, leads_per_day, audience_type, selected_audiences,
	hierarchy_settings, status, leads_generated, created_at, updated_at`

// Create inserts a campaign.
func (r *Repository) Create(ctx context.Context, c domain.Campaign) (domain.Campaign, error) {
	settings, err := json.Marshal(c.HierarchySettings)
	if err != nil {
		return domain.Campaign{}, err
	}
	audiences, err := json.Marshal(c.SelectedAudiences)
	if err != nil {
		return domain.Campaign{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (
			id, tenant_id, name, source, start_date, end_date, timing_type,
			lead_limit_type, leads_per_day, audience_type, selected_audiences,
			hierarchy_settings, status, leads_generated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, now(), now())
		RETURNING `+campaignColumns+`
	`, c.ID, c.TenantID, c.Name, c.Source, c.StartDate, c.EndDate, c.TimingType,
		c.LimitType, c.LeadsPerDay, c.AudienceType, audiences, settings, c.Status)

	return scanCampaign(row)
}

// Update rewrites the campaign's configurable fields. Status and the
// leads_generated counter have dedicated paths.
func (r *Repository) Update(ctx context.Context, c domain.Campaign) (domain.Campaign, error) {
	settings, err := json.Marshal(c.HierarchySettings)
	if err != nil {
		return domain.Campaign{}, err
	}
	audiences, err := json.Marshal(c.SelectedAudiences)
	if err != nil {
		return domain.Campaign{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET name = $3, source = $4, start_date = $5, end_date = $6, timing_type = $7,
		    lead_limit_type = $8, leads_per_day = $9, audience_type = $10,
		    selected_audiences = $11, hierarchy_settings = $12, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+campaignColumns+`
	`, c.TenantID, c.ID, c.Name, c.Source, c.StartDate, c.EndDate, c.TimingType,
		c.LimitType, c.LeadsPerDay, c.AudienceType, audiences, settings)

	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, ErrCampaignNotFound
		}
		return domain.Campaign{}, err
	}
	return campaign, nil
}

// GetByID returns one campaign scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, campaignID uuid.UUID) (domain.Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, campaignID)

	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, ErrCampaignNotFound
		}
		return domain.Campaign{}, err
	}
	return campaign, nil
}

// List returns the tenant's campaigns, newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]domain.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]domain.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return campaigns, nil
}

// SetStatus transitions the campaign's status with a compare-and-set on the
// expected current status. A lost race returns ErrCampaignNotFound semantics
// to the caller through zero rows.
func (r *Repository) SetStatus(ctx context.Context, tenantID, campaignID uuid.UUID, from, to domain.Status) (domain.Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET status = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = $3
		RETURNING `+campaignColumns+`
	`, tenantID, campaignID, from, to)

	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, ErrCampaignNotFound
		}
		return domain.Campaign{}, err
	}
	return campaign, nil
}

// IncrementLeadsGenerated bumps the hit counter by one and returns the new
// value. The counter never decreases.
func (r *Repository) IncrementLeadsGenerated(ctx context.Context, tenantID, campaignID uuid.UUID) (int, error) {
	var hits int
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET leads_generated = leads_generated + 1, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING leads_generated
	`, tenantID, campaignID).Scan(&hits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrCampaignNotFound
	}
	return hits, err
}

// dayKey collapses an instant to the calendar day of its own location, the
// same window the assignment daily counters use. Stored as a plain date.
func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TryIncrementDailyCount atomically takes one distribution slot for the day.
// It returns false when the fixed cap is already reached; the row update and
// the cap check are a single statement, so concurrent distributors cannot
// oversubscribe the day.
func (r *Repository) TryIncrementDailyCount(ctx context.Context, campaignID uuid.UUID, day time.Time, cap int) (bool, error) {
	day = dayKey(day)
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO campaign_daily_counts (campaign_id, day, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (campaign_id, day) DO UPDATE
		SET count = campaign_daily_counts.count + 1
		WHERE campaign_daily_counts.count < $3
	`, campaignID, day, cap)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseDailySlot hands back a slot taken by TryIncrementDailyCount when the
// distribution attempt did not end in an assignment.
func (r *Repository) ReleaseDailySlot(ctx context.Context, campaignID uuid.UUID, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_daily_counts
		SET count = count - 1
		WHERE campaign_id = $1 AND day = $2 AND count > 0
	`, campaignID, dayKey(day))
	return err
}

// DailyCount reads the day's distribution counter.
func (r *Repository) DailyCount(ctx context.Context, campaignID uuid.UUID, day time.Time) (int, error) {
	day = dayKey(day)
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count FROM campaign_daily_counts WHERE campaign_id = $1 AND day = $2
	`, campaignID, day).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func scanCampaign(row pgx.Row) (domain.Campaign, error) {
	var (
		c         domain.Campaign
		audiences []byte
		settings  []byte
	)
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Source, &c.StartDate, &c.EndDate, &c.TimingType,
		&c.LimitType, &c.LeadsPerDay, &c.AudienceType, &audiences,
		&settings, &c.Status, &c.LeadsGenerated, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Campaign{}, err
	}
	if len(audiences) > 0 {
		if err := json.Unmarshal(audiences, &c.SelectedAudiences); err != nil {
			return domain.Campaign{}, err
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &c.HierarchySettings); err != nil {
			return domain.Campaign{}, err
		}
	}
	return c, nil
}
