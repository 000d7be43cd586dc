package repository

import (
	"context"
	"time"

	assignmentrepo "leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Conflict is a pair of leads owned by the same agent whose follow-ups land
// in the same minute. Seconds are ignored; the popup schedules at minute
// resolution.
type Conflict struct {
	AgentID     uuid.UUID `json:"agentId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	LeadA       uuid.UUID `json:"leadA"`
	LeadB       uuid.UUID `json:"leadB"`
}

// ListConflicts finds all follow-up collisions for the tenant. When agentID
// is non-nil the scan is restricted to that agent's book.
func (r *Repository) ListConflicts(ctx context.Context, tenantID uuid.UUID, agentID *uuid.UUID) ([]Conflict, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.owner_agent_id,
		       date_trunc('minute', a.next_call_at),
		       a.id, b.id
		FROM leads a
		JOIN leads b
		  ON b.tenant_id = a.tenant_id
		 AND b.owner_agent_id = a.owner_agent_id
		 AND b.id > a.id
		 AND date_trunc('minute', b.next_call_at) = date_trunc('minute', a.next_call_at)
		WHERE a.tenant_id = $1
		  AND a.owner_agent_id IS NOT NULL
		  AND a.next_call_at IS NOT NULL
		  AND b.next_call_at IS NOT NULL
		  AND a.tag NOT IN ('Won', 'Dropped', 'Duplicate')
		  AND b.tag NOT IN ('Won', 'Dropped', 'Duplicate')
		  AND ($2::uuid IS NULL OR a.owner_agent_id = $2)
		ORDER BY date_trunc('minute', a.next_call_at), a.id
	`, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conflicts := make([]Conflict, 0)
	for rows.Next() {
		var c Conflict
		if err := rows.Scan(&c.AgentID, &c.ScheduledAt, &c.LeadA, &c.LeadB); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return conflicts, nil
}

// ListCollisions returns the agent's active leads whose follow-up lands in
// the same minute as at, excluding excludeLeadID. Read-only; the UI calls it
// speculatively while a date is being edited.
func (r *Repository) ListCollisions(ctx context.Context, tenantID, agentID, excludeLeadID uuid.UUID, at time.Time) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, campaign_id, owner_agent_id, lead_owner, tag, status, priority,
		       call_count, reassignment_count, next_call_at, last_call_at, version,
		       created_at, updated_at
		FROM leads
		WHERE tenant_id = $1
		  AND owner_agent_id = $2
		  AND id <> $3
		  AND next_call_at IS NOT NULL
		  AND date_trunc('minute', next_call_at) = date_trunc('minute', $4::timestamptz)
		  AND tag NOT IN ('Won', 'Dropped', 'Duplicate')
		ORDER BY id
	`, tenantID, agentID, excludeLeadID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return assignmentrepo.ScanLeads(rows)
}

// CountCollisions reports how many other active leads of the agent already
// have a follow-up in the same minute as at. Used for the advisory warning
// when a follow-up is scheduled.
func (r *Repository) CountCollisions(ctx context.Context, tenantID, agentID, excludeLeadID uuid.UUID, at time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM leads
		WHERE tenant_id = $1
		  AND owner_agent_id = $2
		  AND id <> $3
		  AND next_call_at IS NOT NULL
		  AND date_trunc('minute', next_call_at) = date_trunc('minute', $4::timestamptz)
		  AND tag NOT IN ('Won', 'Dropped', 'Duplicate')
	`, tenantID, agentID, excludeLeadID, at).Scan(&count)
	return count, err
}
