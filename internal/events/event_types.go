package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventStepStatusChanged   EventType = "step_status_changed"
	EventFinanceSubmitted    EventType = "finance_submitted"
	EventFinanceDecided      EventType = "finance_decided"
	EventAssigneeChanged     EventType = "assignee_changed"
)

// AllEventTypes lists every event the engine emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventStepStatusChanged,
	EventFinanceSubmitted,
	EventFinanceDecided,
	EventAssigneeChanged,
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, ticketID, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number       string                `json:"number"`
	DepartmentID string                `json:"department_id"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Remarks   string              `json:"remarks,omitempty"`
	// ClosedSteps lists steps completed as part of a ticket completion.
	ClosedSteps []string `json:"closed_steps,omitempty"`
}

// StepStatusChangedPayload payload.
type StepStatusChangedPayload struct {
	StepID    string            `json:"step_id"`
	OldStatus domain.StepStatus `json:"old_status"`
	NewStatus domain.StepStatus `json:"new_status"`
}

// FinanceSubmittedPayload payload.
type FinanceSubmittedPayload struct {
	ApprovalID       string          `json:"approval_id"`
	SubmissionNumber int             `json:"submission_number"`
	TentativeCost    decimal.Decimal `json:"tentative_cost"`
	FinanceOfficerID string          `json:"finance_officer_id"`
}

// FinanceDecidedPayload payload.
type FinanceDecidedPayload struct {
	ApprovalID string                `json:"approval_id"`
	Decision   domain.ApprovalStatus `json:"decision"`
	NewStatus  domain.TicketStatus   `json:"new_status"`
}

// AssigneeChangedPayload payload. StepID is empty for ticket assignments.
type AssigneeChangedPayload struct {
	StepID        string  `json:"step_id,omitempty"`
	OldAssigneeID *string `json:"old_assignee_id"`
	NewAssigneeID *string `json:"new_assignee_id"`
}
