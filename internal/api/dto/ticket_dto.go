package dto

import (
	"time"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title                     string                `json:"title"`
	Description               string                `json:"description"`
	Priority                  domain.TicketPriority `json:"priority"`
	DepartmentID              string                `json:"department_id"`
	Category                  string                `json:"category"`
	AssigneeID                *string               `json:"assignee_id"`
	DueDate                   *time.Time            `json:"due_date"`
	RequiresFinanceApproval   *bool                 `json:"requires_finance_approval"`
	WaiveDocumentRequirements bool                  `json:"waive_document_requirements"`
}

// TransitionRequest asks for a ticket status change. CurrentStatus is the
// status the caller last saw.
type TransitionRequest struct {
	CurrentStatus domain.TicketStatus `json:"current_status" form:"current_status"`
	NewStatus     domain.TicketStatus `json:"new_status" form:"new_status"`
	Remarks       string              `json:"remarks" form:"remarks"`
}

// AssignRequest sets an assignee; null clears it.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                      string                `json:"id"`
	Number                  string                `json:"number"`
	Title                   string                `json:"title"`
	Status                  domain.TicketStatus   `json:"status"`
	Priority                domain.TicketPriority `json:"priority"`
	DepartmentID            string                `json:"department_id"`
	Category                string                `json:"category,omitempty"`
	CreatorID               string                `json:"creator_id"`
	AssigneeID              *string               `json:"assignee_id"`
	RequiresFinanceApproval bool                  `json:"requires_finance_approval"`
	LatestFinanceStatus     domain.FinanceStatus  `json:"latest_finance_status,omitempty"`
	FinanceSubmissionCount  int                   `json:"finance_submission_count"`
	DueDate                 *time.Time            `json:"due_date"`
	CreatedAt               time.Time             `json:"created_at"`
	UpdatedAt               time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides the full ticket snapshot.
type TicketDetailResponse struct {
	TicketSummary
	Description               string                    `json:"description"`
	WaiveDocumentRequirements bool                      `json:"waive_document_requirements"`
	Steps                     []StepResponse            `json:"steps"`
	Attachments               []DocumentResponse        `json:"attachments"`
	FinanceApprovals          []FinanceApprovalResponse `json:"finance_approvals"`
	AvailableTransitions      []domain.TicketStatus     `json:"available_transitions"`
}

// AuditEntryResponse is one audit trail row.
type AuditEntryResponse struct {
	ID          string               `json:"id"`
	ActorID     string               `json:"actor_id"`
	Action      domain.AuditAction   `json:"action"`
	Category    domain.AuditCategory `json:"category"`
	OldValue    map[string]any       `json:"old_value,omitempty"`
	NewValue    map[string]any       `json:"new_value,omitempty"`
	Description string               `json:"description"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}
