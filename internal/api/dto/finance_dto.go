package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// FinanceSubmitRequest sends a ticket to a finance officer.
type FinanceSubmitRequest struct {
	TentativeCost    decimal.Decimal   `json:"tentative_cost"`
	CostDeductedFrom domain.CostBearer `json:"cost_deducted_from"`
	FinanceOfficerID string            `json:"finance_officer_id"`
	Remarks          string            `json:"remarks"`
}

// FinanceDecisionRequest approves or rejects a pending submission.
type FinanceDecisionRequest struct {
	Remarks         string `json:"remarks" form:"remarks"`
	RejectionReason string `json:"rejection_reason" form:"rejection_reason"`
}

// FinanceApprovalResponse describes one submission.
type FinanceApprovalResponse struct {
	ID                 string                `json:"id"`
	TicketID           string                `json:"ticket_id"`
	SubmissionNumber   int                   `json:"submission_number"`
	TentativeCost      decimal.Decimal       `json:"tentative_cost"`
	CostDeductedFrom   domain.CostBearer     `json:"cost_deducted_from"`
	FinanceOfficerID   string                `json:"finance_officer_id"`
	SubmittedBy        string                `json:"submitted_by"`
	Remarks            string                `json:"remarks"`
	Status             domain.ApprovalStatus `json:"status"`
	ApprovalRemarks    *string               `json:"approval_remarks"`
	RejectionReason    *string               `json:"rejection_reason"`
	ApprovalDocumentID *string               `json:"approval_document_id"`
	SubmittedAt        time.Time             `json:"submitted_at"`
	DecidedAt          *time.Time            `json:"decided_at"`
}
