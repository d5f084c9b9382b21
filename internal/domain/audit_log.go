package domain

import "time"

// AuditCategory groups audit entries.
type AuditCategory string

const (
	AuditCategoryTicket   AuditCategory = "ticket"
	AuditCategoryStatus   AuditCategory = "status"
	AuditCategoryWorkflow AuditCategory = "workflow"
	AuditCategoryFinance  AuditCategory = "finance"
	AuditCategoryDocument AuditCategory = "document"
)

// AuditAction labels what happened.
type AuditAction string

const (
	AuditActionTicketCreated     AuditAction = "ticket_created"
	AuditActionStatusChanged     AuditAction = "status_changed"
	AuditActionStepCreated       AuditAction = "step_created"
	AuditActionStepStatusChanged AuditAction = "step_status_changed"
	AuditActionStepDeleted       AuditAction = "step_deleted"
	AuditActionDependencyAdded   AuditAction = "dependency_added"
	AuditActionDependencyRemoved AuditAction = "dependency_removed"
	AuditActionFinanceSubmitted  AuditAction = "finance_submitted"
	AuditActionFinanceApproved   AuditAction = "finance_approved"
	AuditActionFinanceRejected   AuditAction = "finance_rejected"
	AuditActionDocumentUploaded  AuditAction = "document_uploaded"
	AuditActionDocumentDeleted   AuditAction = "document_deleted"
	AuditActionAssigneeChanged   AuditAction = "assignee_changed"
)

// AuditLogEntry is an immutable record of one state-changing operation.
type AuditLogEntry struct {
	ID          string
	TicketID    string
	ActorID     string
	Action      AuditAction
	Category    AuditCategory
	OldValue    map[string]any
	NewValue    map[string]any
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}
