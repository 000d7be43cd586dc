// Package repository persists call records and applies call-outcome
// decisions to leads.
package repository

import (
	"context"
	"errors"
	"time"

	assignmentrepo "leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrLeadNotFound = assignmentrepo.ErrLeadNotFound
	// ErrVersionConflict means the lead changed between read and write; the
	// caller should re-read and resubmit.
	ErrVersionConflict = assignmentrepo.ErrVersionConflict
)

// CallRecord is the immutable log row of one call attempt.
type CallRecord struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	LeadID       uuid.UUID
	AgentID      uuid.UUID
	Response     domain.CallResponse
	Reason       string
	Remarks      string
	DurationMin  int
	ResultingTag domain.Tag
	CreatedAt    time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetLead returns one lead scoped to the tenant.
func (r *Repository) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, campaign_id, owner_agent_id, lead_owner, tag, status, priority,
		       call_count, reassignment_count, next_call_at, last_call_at, version,
		       created_at, updated_at
		FROM leads
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID)

	lead, err := assignmentrepo.ScanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrLeadNotFound
		}
		return domain.Lead{}, err
	}
	return lead, nil
}

// ApplyOutcome writes the decision to the lead and appends the call record in
// one transaction. The version compare-and-set guards the whole write: a
// concurrent mutation rolls everything back with ErrVersionConflict.
func (r *Repository) ApplyOutcome(ctx context.Context, lead domain.Lead, d domain.OutcomeDecision, rec CallRecord, calledAt time.Time) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE leads
		SET tag = $4,
		    call_count = $5,
		    priority = $6,
		    next_call_at = $7,
		    last_call_at = $8,
		    reassignment_count = $9,
		    owner_agent_id = CASE WHEN $10 THEN NULL ELSE owner_agent_id END,
		    version = version + 1,
		    updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND version = $3
		RETURNING id, tenant_id, campaign_id, owner_agent_id, lead_owner, tag, status, priority,
		          call_count, reassignment_count, next_call_at, last_call_at, version,
		          created_at, updated_at
	`, lead.TenantID, lead.ID, lead.Version,
		d.Tag, d.CallCount, d.Priority, d.NextCallAt, calledAt,
		d.ReassignmentCount, d.ReleaseOwnership)

	updated, err := assignmentrepo.ScanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrVersionConflict
		}
		return domain.Lead{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO call_records (id, tenant_id, lead_id, agent_id, response, reason, remarks, duration_min, resulting_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.TenantID, rec.LeadID, rec.AgentID, rec.Response, rec.Reason, rec.Remarks,
		rec.DurationMin, rec.ResultingTag, calledAt); err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return updated, nil
}

// ListCallRecords returns a lead's call history, newest first.
func (r *Repository) ListCallRecords(ctx context.Context, tenantID, leadID uuid.UUID) ([]CallRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, agent_id, response, reason, remarks, duration_min, resulting_tag, created_at
		FROM call_records
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at DESC, id DESC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]CallRecord, 0)
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.LeadID, &rec.AgentID, &rec.Response,
			&rec.Reason, &rec.Remarks, &rec.DurationMin, &rec.ResultingTag, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}
