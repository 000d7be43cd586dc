package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssignmentType distinguishes how a lead reached its owner.
type AssignmentType string

const (
	AssignmentTypeAuto     AssignmentType = "auto"
	AssignmentTypeManual   AssignmentType = "manual"
	AssignmentTypeCampaign AssignmentType = "campaign"
)

// ReassignedFromSystem is the sentinel recorded when a lead had no previous
// owner.
const ReassignedFromSystem = "system"

// LogEntry is one immutable row in the assignment audit log.
type LogEntry struct {
	ID       int64
	TenantID uuid.UUID
	LeadID   uuid.UUID
	AgentID  uuid.UUID
	// EmployeeName is the destination agent's name at assignment time.
	EmployeeName string
	// ReassignedFrom is the previous owner's id, or "system".
	ReassignedFrom string
	AssignedByID   *uuid.UUID
	AssignmentType AssignmentType
	Reason         *string
	CreatedAt      time.Time
}

const logColumns = `id, tenant_id, lead_id, agent_id, employee_name, reassigned_from, assigned_by_id, assignment_type, reason, created_at`

// AppendLog records an assignment. The log is append-only; reassignments add
// rows, they never rewrite history.
func (r *Repository) AppendLog(ctx context.Context, e LogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignment_logs (tenant_id, lead_id, agent_id, employee_name, reassigned_from, assigned_by_id, assignment_type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, e.TenantID, e.LeadID, e.AgentID, e.EmployeeName, e.ReassignedFrom, e.AssignedByID, e.AssignmentType, e.Reason)
	return err
}

// ListLogs returns one page of the assignment log. Page 1 holds the most
// recent entries; within a page entries run oldest to newest so the last
// element is the most recent assignment.
func (r *Repository) ListLogs(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]LogEntry, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM assignment_logs WHERE tenant_id = $1
	`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM assignment_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]LogEntry, 0, limit)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.LeadID, &e.AgentID, &e.EmployeeName, &e.ReassignedFrom, &e.AssignedByID, &e.AssignmentType, &e.Reason, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	// Newest last within the page.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, total, nil
}

// ListLeadHistory returns the full assignment history of one lead in
// chronological order.
func (r *Repository) ListLeadHistory(ctx context.Context, tenantID, leadID uuid.UUID) ([]LogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM assignment_logs
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC, id ASC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LogEntry, 0)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.LeadID, &e.AgentID, &e.EmployeeName, &e.ReassignedFrom, &e.AssignedByID, &e.AssignmentType, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}
