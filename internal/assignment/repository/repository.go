// Package repository provides data access for assignment policies, the
// unassigned lead pool, round-robin cursors, and the assignment log.
package repository

import (
	"context"
	"errors"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPolicyNotFound = errors.New("assignment policy not found")
	ErrLeadNotFound   = errors.New("lead not found")

	// ErrVersionConflict is returned when a compare-and-set update loses to a
	// concurrent writer. Callers surface it as a retryable conflict.
	ErrVersionConflict = errors.New("lead version conflict")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// =============================================================================
// Assignment policy
// =============================================================================

const policyColumns = `
	tenant_id, mode, leads_per_employee_per_day, max_active_leads_balance,
	revert_time_hours, load_balancing_strategy, priority_handling,
	max_call_attempts, call_time_gap_minutes,
	auto_disqualification, reassignment_on_disqualified, max_reassignment_limit,
	updated_at`

// GetPolicy returns the tenant's assignment policy.
func (r *Repository) GetPolicy(ctx context.Context, tenantID uuid.UUID) (domain.AssignmentPolicy, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+policyColumns+`
		FROM assignment_policies
		WHERE tenant_id = $1
	`, tenantID)

	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AssignmentPolicy{}, ErrPolicyNotFound
		}
		return domain.AssignmentPolicy{}, err
	}
	return policy, nil
}

// ReplacePolicy persists the policy wholesale. There is exactly one policy
// row per tenant; the update is a whole-object replacement.
func (r *Repository) ReplacePolicy(ctx context.Context, p domain.AssignmentPolicy) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignment_policies (
			tenant_id, mode, leads_per_employee_per_day, max_active_leads_balance,
			revert_time_hours, load_balancing_strategy, priority_handling,
			max_call_attempts, call_time_gap_minutes,
			auto_disqualification, reassignment_on_disqualified, max_reassignment_limit,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			leads_per_employee_per_day = EXCLUDED.leads_per_employee_per_day,
			max_active_leads_balance = EXCLUDED.max_active_leads_balance,
			revert_time_hours = EXCLUDED.revert_time_hours,
			load_balancing_strategy = EXCLUDED.load_balancing_strategy,
			priority_handling = EXCLUDED.priority_handling,
			max_call_attempts = EXCLUDED.max_call_attempts,
			call_time_gap_minutes = EXCLUDED.call_time_gap_minutes,
			auto_disqualification = EXCLUDED.auto_disqualification,
			reassignment_on_disqualified = EXCLUDED.reassignment_on_disqualified,
			max_reassignment_limit = EXCLUDED.max_reassignment_limit,
			updated_at = now()
	`,
		p.TenantID, p.Mode, p.LeadsPerEmployeePerDay, p.MaxActiveLeadsBalance,
		p.RevertTimeHours, p.LoadBalancingStrategy, p.PriorityHandling,
		p.MaxCallAttempts, p.CallTimeGapMinutes,
		p.AutoDisqualification, p.ReassignmentOnDisqualified, p.MaxReassignmentLimit,
	)
	return err
}

func scanPolicy(row pgx.Row) (domain.AssignmentPolicy, error) {
	var p domain.AssignmentPolicy
	err := row.Scan(
		&p.TenantID, &p.Mode, &p.LeadsPerEmployeePerDay, &p.MaxActiveLeadsBalance,
		&p.RevertTimeHours, &p.LoadBalancingStrategy, &p.PriorityHandling,
		&p.MaxCallAttempts, &p.CallTimeGapMinutes,
		&p.AutoDisqualification, &p.ReassignmentOnDisqualified, &p.MaxReassignmentLimit,
		&p.UpdatedAt,
	)
	return p, err
}

// =============================================================================
// Leads
// =============================================================================

const leadColumns = `
	id, tenant_id, campaign_id, owner_agent_id, lead_owner, tag, status, priority,
	call_count, reassignment_count, next_call_at, last_call_at, version,
	created_at, updated_at`

// GetLead returns one lead scoped to the tenant.
func (r *Repository) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID)

	lead, err := ScanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrLeadNotFound
		}
		return domain.Lead{}, err
	}
	return lead, nil
}

// ListUnassigned returns leads waiting for an owner, oldest first. Leads
// claimed by a concurrent sweep (in_progress) are excluded.
func (r *Repository) ListUnassigned(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1
		  AND owner_agent_id IS NULL
		  AND NOT in_progress
		  AND tag NOT IN ('Won', 'Dropped', 'Duplicate')
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return ScanLeads(rows)
}

// CountUnassigned reports the size of the pending-assignment pool.
func (r *Repository) CountUnassigned(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM leads
		WHERE tenant_id = $1
		  AND owner_agent_id IS NULL
		  AND tag NOT IN ('Won', 'Dropped', 'Duplicate')
	`, tenantID).Scan(&count)
	return count, err
}

// AssignLead sets the lead's owner with a version compare-and-set. The
// version check serializes assignment against concurrent call logging and
// reclamation; a lost race returns ErrVersionConflict.
func (r *Repository) AssignLead(ctx context.Context, tenantID, leadID uuid.UUID, version int64, agentID uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET owner_agent_id = $4,
		    tag = CASE WHEN tag = 'NotConnected' THEN tag ELSE 'NewLead' END,
		    version = version + 1,
		    updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND version = $3
		RETURNING `+leadColumns+`
	`, tenantID, leadID, version, agentID)

	lead, err := ScanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrVersionConflict
		}
		return domain.Lead{}, err
	}
	return lead, nil
}

// ScanLead scans one lead row.
func ScanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.TenantID, &l.CampaignID, &l.OwnerAgentID, &l.LeadOwner,
		&l.Tag, &l.Status, &l.Priority,
		&l.CallCount, &l.ReassignmentCount, &l.NextCallAt, &l.LastCallAt, &l.Version,
		&l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// ScanLeads scans all lead rows.
func ScanLeads(rows pgx.Rows) ([]domain.Lead, error) {
	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := ScanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

// =============================================================================
// Round-robin cursors
// =============================================================================

// Cursor returns the last-assigned agent for a pool, or uuid.Nil when the
// pool has no rotation history yet.
func (r *Repository) Cursor(ctx context.Context, tenantID uuid.UUID, poolKey string) (uuid.UUID, error) {
	var lastAgent uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT last_agent_id
		FROM assignment_cursors
		WHERE tenant_id = $1 AND pool_key = $2
	`, tenantID, poolKey).Scan(&lastAgent)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return lastAgent, nil
}

// SetCursor records the last-assigned agent for a pool.
func (r *Repository) SetCursor(ctx context.Context, tenantID uuid.UUID, poolKey string, agentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignment_cursors (tenant_id, pool_key, last_agent_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id, pool_key) DO UPDATE SET
			last_agent_id = EXCLUDED.last_agent_id,
			updated_at = now()
	`, tenantID, poolKey, agentID)
	return err
}
