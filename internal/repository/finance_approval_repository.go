package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// FinanceApprovalRepository persists finance approvals.
type FinanceApprovalRepository interface {
	Create(ctx context.Context, approval *domain.FinanceApproval) error
	// GetByIDForUpdate locks the approval row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.FinanceApproval, error)
	UpdateDecision(ctx context.Context, approval *domain.FinanceApproval) error
	// ListByTicket returns approvals newest submission first.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.FinanceApproval, error)
	HasPending(ctx context.Context, ticketID string) (bool, error)
}

const approvalColumns = `id, ticket_id, submission_number, tentative_cost, cost_deducted_from, finance_officer_id,
       submitted_by, remarks, status, approval_remarks, rejection_reason, approval_document_id, submitted_at, decided_at`

type financeApprovalRepository struct {
	db DB
}

// NewFinanceApprovalRepository builds repository.
func NewFinanceApprovalRepository(db DB) FinanceApprovalRepository {
	return &financeApprovalRepository{db: db}
}

func (r *financeApprovalRepository) Create(ctx context.Context, approval *domain.FinanceApproval) error {
	const query = `
        INSERT INTO finance_approvals (ticket_id, submission_number, tentative_cost, cost_deducted_from,
            finance_officer_id, submitted_by, remarks, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, submitted_at`
	return querier(ctx, r.db).QueryRow(ctx, query,
		approval.TicketID,
		approval.SubmissionNumber,
		approval.TentativeCost,
		approval.CostDeductedFrom,
		approval.FinanceOfficerID,
		approval.SubmittedBy,
		approval.Remarks,
		approval.Status,
	).Scan(&approval.ID, &approval.SubmittedAt)
}

func (r *financeApprovalRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.FinanceApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM finance_approvals WHERE id=$1 FOR UPDATE`
	return scanApproval(querier(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *financeApprovalRepository) UpdateDecision(ctx context.Context, approval *domain.FinanceApproval) error {
	const query = `
        UPDATE finance_approvals SET status=$1, approval_remarks=$2, rejection_reason=$3,
            approval_document_id=$4, decided_at=$5
        WHERE id=$6 AND status='pending'`
	cmd, err := querier(ctx, r.db).Exec(ctx, query,
		approval.Status,
		approval.ApprovalRemarks,
		approval.RejectionReason,
		approval.ApprovalDocumentID,
		approval.DecidedAt,
		approval.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *financeApprovalRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.FinanceApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM finance_approvals WHERE ticket_id=$1
        ORDER BY submission_number DESC, submitted_at DESC`
	rows, err := querier(ctx, r.db).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FinanceApproval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *approval)
	}
	return result, rows.Err()
}

func (r *financeApprovalRepository) HasPending(ctx context.Context, ticketID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM finance_approvals WHERE ticket_id=$1 AND status='pending')`
	var exists bool
	err := querier(ctx, r.db).QueryRow(ctx, query, ticketID).Scan(&exists)
	return exists, err
}

func scanApproval(row pgx.Row) (*domain.FinanceApproval, error) {
	var approval domain.FinanceApproval
	if err := row.Scan(
		&approval.ID,
		&approval.TicketID,
		&approval.SubmissionNumber,
		&approval.TentativeCost,
		&approval.CostDeductedFrom,
		&approval.FinanceOfficerID,
		&approval.SubmittedBy,
		&approval.Remarks,
		&approval.Status,
		&approval.ApprovalRemarks,
		&approval.RejectionReason,
		&approval.ApprovalDocumentID,
		&approval.SubmittedAt,
		&approval.DecidedAt,
	); err != nil {
		return nil, err
	}
	return &approval, nil
}
