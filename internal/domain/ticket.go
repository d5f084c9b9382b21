package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusDraft             TicketStatus = "DRAFT"
	TicketStatusCreated           TicketStatus = "CREATED"
	TicketStatusApproved          TicketStatus = "APPROVED"
	TicketStatusActive            TicketStatus = "ACTIVE"
	TicketStatusSentToFinance     TicketStatus = "SENT_TO_FINANCE"
	TicketStatusApprovedByFinance TicketStatus = "APPROVED_BY_FINANCE"
	TicketStatusRejectedByFinance TicketStatus = "REJECTED_BY_FINANCE"
	TicketStatusCompleted         TicketStatus = "COMPLETED"
	TicketStatusClosed            TicketStatus = "CLOSED"
	TicketStatusCancelled         TicketStatus = "CANCELLED"
)

// TicketStatuses lists every valid ticket status.
var TicketStatuses = []TicketStatus{
	TicketStatusDraft,
	TicketStatusCreated,
	TicketStatusApproved,
	TicketStatusActive,
	TicketStatusSentToFinance,
	TicketStatusApprovedByFinance,
	TicketStatusRejectedByFinance,
	TicketStatusCompleted,
	TicketStatusClosed,
	TicketStatusCancelled,
}

// IsValid reports whether s is one of the enumerated statuses.
func (s TicketStatus) IsValid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityCritical TicketPriority = "CRITICAL"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityLow      TicketPriority = "LOW"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityCritical, TicketPriorityHigh, TicketPriorityMedium, TicketPriorityLow:
		return true
	}
	return false
}

// FinanceStatus mirrors the latest finance approval of a ticket.
type FinanceStatus string

const (
	FinanceStatusNone     FinanceStatus = ""
	FinanceStatusPending  FinanceStatus = "pending"
	FinanceStatusApproved FinanceStatus = "approved"
	FinanceStatusRejected FinanceStatus = "rejected"
)

// Ticket is the aggregate for work requests.
type Ticket struct {
	ID                        string
	Number                    string
	Title                     string
	Description               string
	Status                    TicketStatus
	Priority                  TicketPriority
	DepartmentID              string
	Category                  string
	CreatorID                 string
	AssigneeID                *string
	RequiresFinanceApproval   bool
	LatestFinanceStatus       FinanceStatus
	FinanceSubmissionCount    int
	WaiveDocumentRequirements bool
	DueDate                   *time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time

	Steps       []WorkflowStep
	Attachments []Document
}
