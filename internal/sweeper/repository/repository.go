// Package repository holds the storage operations of the reclamation
// sweeper: claiming due leads with an in_progress latch and applying the
// re-bucket and ownership-revert writes under the version CAS.
package repository

import (
	"context"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SweepLead is the slice of a lead row the sweeper needs to decide what to do
// with a claimed lead.
type SweepLead struct {
	ID           uuid.UUID
	OwnerAgentID *uuid.UUID
	Tag          domain.Tag
	NextCallAt   *time.Time
	LastCallAt   *time.Time
	UpdatedAt    time.Time
	Version      int64
}

// ListTenants returns every tenant that currently has leads the sweeper could
// act on. The cron loop fans one sweep task out per tenant.
func (r *Repository) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT tenant_id
		FROM leads
		WHERE tag NOT IN ('Won', 'Dropped', 'Duplicate')
		  AND (owner_agent_id IS NOT NULL OR tag = 'NotConnected')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// ClaimDue latches up to limit leads that are due for a sweep action and
// returns them. The in_progress latch plus SKIP LOCKED make concurrent sweeps
// of the same tenant partition the work instead of double-processing it.
//
// A lead is due when its snooze expired (NotConnected with next_call_at in
// the past) or its owner went quiet past the revert window.
func (r *Repository) ClaimDue(ctx context.Context, tenantID uuid.UUID, now, revertBefore time.Time, limit int) ([]SweepLead, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE leads
		SET in_progress = true
		WHERE id IN (
			SELECT id
			FROM leads
			WHERE tenant_id = $1
			  AND NOT in_progress
			  AND tag NOT IN ('Won', 'Dropped', 'Duplicate')
			  AND (
			        (tag = 'NotConnected' AND next_call_at IS NOT NULL AND next_call_at <= $2)
			     OR (owner_agent_id IS NOT NULL AND COALESCE(last_call_at, updated_at) <= $3)
			  )
			ORDER BY updated_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, owner_agent_id, tag, next_call_at, last_call_at, updated_at, version
	`, tenantID, now, revertBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]SweepLead, 0)
	for rows.Next() {
		var l SweepLead
		if err := rows.Scan(&l.ID, &l.OwnerAgentID, &l.Tag, &l.NextCallAt, &l.LastCallAt, &l.UpdatedAt, &l.Version); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// Apply finishes one claimed lead: optionally re-buckets it to NewLead,
// optionally strips its owner, and always drops the latch. The version CAS
// loses to any write that happened between claim and apply; the caller then
// releases the latch and leaves the lead for the next pass.
func (r *Repository) Apply(ctx context.Context, tenantID, leadID uuid.UUID, version int64, rebucket, reclaim bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET tag = CASE WHEN $4 THEN 'NewLead' ELSE tag END,
		    owner_agent_id = CASE WHEN $5 THEN NULL ELSE owner_agent_id END,
		    in_progress = false,
		    version = version + 1,
		    updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND version = $3
	`, tenantID, leadID, version, rebucket, reclaim)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Release drops the latch on claimed leads without touching lead state. Used
// when a lead lost its version race or the pass aborted part way.
func (r *Repository) Release(ctx context.Context, tenantID uuid.UUID, leadIDs []uuid.UUID) error {
	if len(leadIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET in_progress = false
		WHERE tenant_id = $1 AND id = ANY($2) AND in_progress
	`, tenantID, leadIDs)
	return err
}
