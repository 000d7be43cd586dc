// Package repository persists incoming leads with their contact fields.
package repository

import (
	"context"
	"errors"

	leads "leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLeadNotFound = errors.New("lead not found")

// LeadRecord is an engine lead together with the contact fields intake owns.
type LeadRecord struct {
	leads.Lead
	Name   string
	Phone  string
	Email  string
	Source string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `
	id, tenant_id, campaign_id, owner_agent_id, lead_owner, tag, status, priority,
	call_count, reassignment_count, next_call_at, last_call_at, version,
	created_at, updated_at, name, phone, email, source`

// Create inserts a new lead in the unassigned pool.
func (r *Repository) Create(ctx context.Context, rec LeadRecord) (LeadRecord, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, tenant_id, campaign_id, tag, status, priority,
			call_count, reassignment_count, version, in_progress,
			created_at, updated_at, name, phone, email, source
		) VALUES ($1, $2, $3, $4, 'open', $5, 0, 0, 1, false, now(), now(), $6, $7, $8, $9)
		RETURNING `+recordColumns+`
	`, rec.ID, rec.TenantID, rec.CampaignID, rec.Tag, rec.Priority,
		rec.Name, rec.Phone, rec.Email, rec.Source)

	return scanRecord(row)
}

// GetByID returns one lead with contact fields, scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, leadID uuid.UUID) (LeadRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM leads
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LeadRecord{}, ErrLeadNotFound
		}
		return LeadRecord{}, err
	}
	return rec, nil
}

// PhoneExists reports whether a non-terminal lead with this normalized phone
// already exists for the tenant.
func (r *Repository) PhoneExists(ctx context.Context, tenantID uuid.UUID, phone string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE tenant_id = $1 AND phone = $2
			  AND tag NOT IN ('Won', 'Dropped', 'Duplicate')
		)
	`, tenantID, phone).Scan(&exists)
	return exists, err
}

func scanRecord(row pgx.Row) (LeadRecord, error) {
	var rec LeadRecord
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.CampaignID, &rec.OwnerAgentID, &rec.LeadOwner,
		&rec.Tag, &rec.Status, &rec.Priority,
		&rec.CallCount, &rec.ReassignmentCount, &rec.NextCallAt, &rec.LastCallAt, &rec.Version,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.Name, &rec.Phone, &rec.Email, &rec.Source,
	)
	return rec, err
}
