// Package repository provides data access for the agent directory: the
// employees and teams the distribution scheduler draws candidates from,
// together with the derived load counters the eligibility filter needs.
package repository

import (
	"context"
	"errors"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAgentNotFound = errors.New("agent not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// agentColumns selects an agent row plus the two derived counters:
// active_balance counts owned leads outside terminal tags, assigned_today
// counts assignment log entries in the current tenant-local calendar day.
const agentColumns = `
	a.id, a.tenant_id, a.name, a.team_id, a.hierarchy_level,
	a.max_active_balance, a.daily_limit, a.daily_limit_unlimited, a.is_investigation_officer,
	(SELECT COUNT(*) FROM leads l
		WHERE l.owner_agent_id = a.id
		  AND l.tag NOT IN ('Won', 'Dropped', 'Duplicate')) AS active_balance,
	(SELECT COUNT(*) FROM assignment_logs g
		WHERE g.agent_id = a.id
		  AND g.created_at >= $2) AS assigned_today`

// GetByID returns one agent with derived counters, scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, agentID uuid.UUID, dayStart time.Time) (domain.Agent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+agentColumns+`
		FROM agents a
		WHERE a.tenant_id = $1 AND a.id = $3 AND a.is_active
	`, tenantID, dayStart, agentID)

	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Agent{}, ErrAgentNotFound
		}
		return domain.Agent{}, err
	}
	return agent, nil
}

// ListActive returns the tenant's active agents in stable pool order
// (hierarchy level, then creation order). This is the candidate pool for
// tenant-wide round robin.
func (r *Repository) ListActive(ctx context.Context, tenantID uuid.UUID, dayStart time.Time) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM agents a
		WHERE a.tenant_id = $1 AND a.is_active
		ORDER BY a.hierarchy_level ASC, a.created_at ASC, a.id ASC
	`, tenantID, dayStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAgents(rows)
}

// ListByIDs returns the named agents with derived counters. Missing or
// inactive IDs are skipped, not errors; callers report them separately.
func (r *Repository) ListByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, dayStart time.Time) ([]domain.Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM agents a
		WHERE a.tenant_id = $1 AND a.is_active AND a.id = ANY($3)
		ORDER BY a.hierarchy_level ASC, a.created_at ASC, a.id ASC
	`, tenantID, dayStart, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAgents(rows)
}

// ListByTeams returns active members of the named teams in pool order.
func (r *Repository) ListByTeams(ctx context.Context, tenantID uuid.UUID, teamIDs []uuid.UUID, dayStart time.Time) ([]domain.Agent, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM agents a
		WHERE a.tenant_id = $1 AND a.is_active AND a.team_id = ANY($3)
		ORDER BY a.hierarchy_level ASC, a.created_at ASC, a.id ASC
	`, tenantID, dayStart, teamIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAgents(rows)
}

func scanAgents(rows pgx.Rows) ([]domain.Agent, error) {
	agents := make([]domain.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return agents, nil
}

func scanAgent(row pgx.Row) (domain.Agent, error) {
	var agent domain.Agent
	err := row.Scan(
		&agent.ID, &agent.TenantID, &agent.Name, &agent.TeamID, &agent.HierarchyLevel,
		&agent.MaxActiveBalance, &agent.DailyLimit, &agent.DailyLimitUnlimited, &agent.IsInvestigationOfficer,
		&agent.ActiveBalance, &agent.AssignedToday,
	)
	return agent, err
}
