package workflow

import (
	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// Verb names a kind of transition for permission purposes.
type Verb string

const (
	VerbSubmit        Verb = "submit"
	VerbApprove       Verb = "approve"
	VerbActivate      Verb = "activate"
	VerbCancel        Verb = "cancel"
	VerbComplete      Verb = "complete"
	VerbSendToFinance Verb = "send_to_finance"
	VerbRework        Verb = "rework"
	VerbReopen        Verb = "reopen"
	VerbReinstate     Verb = "reinstate"
	VerbClose         Verb = "close"
)

// AllVerbs lists every transition verb.
var AllVerbs = []Verb{
	VerbSubmit, VerbApprove, VerbActivate, VerbCancel, VerbComplete,
	VerbSendToFinance, VerbRework, VerbReopen, VerbReinstate, VerbClose,
}

type edge struct {
	from domain.TicketStatus
	to   domain.TicketStatus
}

// transitionTable is the role-independent table. A pair not listed is illegal.
// SENT_TO_FINANCE has no outgoing edges; the finance decision moves it.
var transitionTable = map[edge]Verb{
	{domain.TicketStatusDraft, domain.TicketStatusCreated}: VerbSubmit,

	{domain.TicketStatusCreated, domain.TicketStatusActive}:    VerbActivate,
	{domain.TicketStatusCreated, domain.TicketStatusApproved}:  VerbApprove,
	{domain.TicketStatusCreated, domain.TicketStatusCancelled}: VerbCancel,

	{domain.TicketStatusApproved, domain.TicketStatusActive}:    VerbActivate,
	{domain.TicketStatusApproved, domain.TicketStatusCancelled}: VerbCancel,

	{domain.TicketStatusActive, domain.TicketStatusCompleted}:     VerbComplete,
	{domain.TicketStatusActive, domain.TicketStatusCancelled}:     VerbCancel,
	{domain.TicketStatusActive, domain.TicketStatusSentToFinance}: VerbSendToFinance,

	{domain.TicketStatusApprovedByFinance, domain.TicketStatusCompleted}: VerbComplete,
	{domain.TicketStatusApprovedByFinance, domain.TicketStatusActive}:    VerbRework,

	{domain.TicketStatusRejectedByFinance, domain.TicketStatusActive}:        VerbRework,
	{domain.TicketStatusRejectedByFinance, domain.TicketStatusSentToFinance}: VerbSendToFinance,

	{domain.TicketStatusClosed, domain.TicketStatusActive}:     VerbReopen,
	{domain.TicketStatusCompleted, domain.TicketStatusActive}:  VerbReopen,
	{domain.TicketStatusCompleted, domain.TicketStatusClosed}:  VerbClose,
	{domain.TicketStatusCancelled, domain.TicketStatusCreated}: VerbReinstate,
}

// TransitionVerb returns the verb for from -> to and whether the pair is in the table.
func TransitionVerb(from, to domain.TicketStatus) (Verb, bool) {
	verb, ok := transitionTable[edge{from: from, to: to}]
	return verb, ok
}

// IsFinanceEligible reports whether SENT_TO_FINANCE may be offered for the ticket.
func IsFinanceEligible(ticket *domain.Ticket, steps []domain.WorkflowStep) bool {
	return ticket.RequiresFinanceApproval && AllStepsDone(steps)
}

// AvailableTransitions lists the table targets reachable from the ticket's
// current status, honouring the finance eligibility rule.
func AvailableTransitions(ticket *domain.Ticket, steps []domain.WorkflowStep) []domain.TicketStatus {
	var result []domain.TicketStatus
	for _, to := range domain.TicketStatuses {
		if _, ok := TransitionVerb(ticket.Status, to); !ok {
			continue
		}
		if to == domain.TicketStatusSentToFinance && !IsFinanceEligible(ticket, steps) {
			continue
		}
		result = append(result, to)
	}
	return result
}

type stepEdge struct {
	from domain.StepStatus
	to   domain.StepStatus
}

var stepTransitions = map[stepEdge]struct{}{
	{domain.StepStatusCreated, domain.StepStatusActive}:   {},
	{domain.StepStatusActive, domain.StepStatusCompleted}: {},
	{domain.StepStatusCompleted, domain.StepStatusClosed}: {},
	{domain.StepStatusCompleted, domain.StepStatusActive}: {},
	{domain.StepStatusClosed, domain.StepStatusActive}:    {},
}

// IsValidStepTransition reports whether a step may move from -> to.
func IsValidStepTransition(from, to domain.StepStatus) bool {
	_, ok := stepTransitions[stepEdge{from: from, to: to}]
	return ok
}
