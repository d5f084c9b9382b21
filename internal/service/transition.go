package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// Precondition names reported in PreconditionFailed details.
const (
	RequirementDependencies     = "dependencies"
	RequirementFinanceApproval  = "finance_approval"
	RequirementStepsCompleted   = "all_steps_completed"
	RequirementFinanceRequired  = "requires_finance_approval"
	RequirementNoDependentSteps = "no_dependent_steps"
)

// TransitionRequest asks for a ticket status change. CurrentStatus is the
// status the caller last saw; the request is rejected as stale when the
// ticket has moved on.
type TransitionRequest struct {
	TicketID              string
	CurrentStatus         domain.TicketStatus
	NewStatus             domain.TicketStatus
	Remarks               string
	CompletionCertificate *Upload
}

// TransitionStatus moves a ticket through the state machine. On any error the
// ticket, its steps and the audit log are left untouched.
func (s *TicketService) TransitionStatus(ctx context.Context, actor *domain.User, req TransitionRequest) (*domain.Ticket, error) {
	if actor == nil {
		return nil, errorutil.NewUnauthorized("actor required")
	}
	if err := validateRemarks("remarks", req.Remarks, minRemarksLength); err != nil {
		return nil, err
	}
	if !req.NewStatus.IsValid() || !req.CurrentStatus.IsValid() {
		return nil, errorutil.NewValidationError("unknown status", map[string]any{
			"current_status": req.CurrentStatus,
			"new_status":     req.NewStatus,
		})
	}

	ticket, err := s.loadTicket(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}
	if err := s.gateTransition(actor, ticket, req.NewStatus); err != nil {
		return nil, err
	}

	blob, err := s.putBlob(ctx, req.TicketID, req.CompletionCertificate)
	if err != nil {
		return nil, err
	}

	var (
		updated     *domain.Ticket
		oldStatus   domain.TicketStatus
		closedSteps []string
	)
	err = s.mutate(ctx, req.TicketID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, req.TicketID)
		if err != nil {
			return err
		}
		if current.Status != req.CurrentStatus {
			return errorutil.NewStaleState("ticket status changed", map[string]any{
				"ticket_id":       current.ID,
				"expected_status": req.CurrentStatus,
				"actual_status":   current.Status,
			})
		}
		if err := s.gateTransition(actor, current, req.NewStatus); err != nil {
			return err
		}
		verb, ok := workflow.TransitionVerb(current.Status, req.NewStatus)
		if !ok {
			return errorutil.NewInvalidTransition("transition not allowed", map[string]any{
				"ticket_id": current.ID,
				"from":      current.Status,
				"to":        req.NewStatus,
			})
		}
		if req.NewStatus == domain.TicketStatusSentToFinance {
			return errorutil.NewValidationError("use the finance submission to send a ticket to finance", map[string]any{
				"ticket_id": current.ID,
				"to":        req.NewStatus,
			})
		}

		var certificate *domain.Document
		if blob != nil {
			certificate = documentFor(blob, req.CompletionCertificate, current.ID, actor.ID)
			certificate.IsCompletionCertificate = true
			if err := s.documents.Create(ctx, certificate); err != nil {
				return storeErr(err, "document", nil)
			}
		}

		if req.NewStatus == domain.TicketStatusCompleted {
			closedSteps, err = s.closeOutSteps(ctx, actor, current)
			if err != nil {
				return err
			}
		}

		oldStatus = current.Status
		current.Status = req.NewStatus
		if err := s.tickets.Update(ctx, current); err != nil {
			return storeErr(err, "ticket", map[string]any{"ticket_id": current.ID})
		}

		metadata := map[string]any{"verb": verb}
		if len(closedSteps) > 0 {
			metadata["closed_steps"] = closedSteps
		}
		if certificate != nil {
			metadata["certificate_document_id"] = certificate.ID
		}
		updated = current
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    current.ID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionStatusChanged,
			Category:    domain.AuditCategoryStatus,
			OldValue:    map[string]any{"status": oldStatus},
			NewValue:    map[string]any{"status": current.Status},
			Description: req.Remarks,
			Metadata:    metadata,
		})
	})
	if err != nil {
		s.discardBlob(blob)
		s.logger.Debug("transition rejected",
			zap.String("ticket_id", req.TicketID),
			zap.String("to", string(req.NewStatus)),
			zap.String("code", errorutil.CodeOf(err)),
		)
		return nil, err
	}

	s.publish(ctx, events.New(events.EventTicketStatusChanged, updated.ID, actor.ID, events.TicketStatusChangedPayload{
		OldStatus:   oldStatus,
		NewStatus:   updated.Status,
		Remarks:     req.Remarks,
		ClosedSteps: closedSteps,
	}))
	return updated, nil
}

func (s *TicketService) gateTransition(actor *domain.User, ticket *domain.Ticket, to domain.TicketStatus) error {
	if s.permissions.CanTransition(actor, ticket, to) {
		return nil
	}
	return errorutil.NewPermissionDenied("actor may not move this ticket", map[string]any{
		"ticket_id": ticket.ID,
		"actor_id":  actor.ID,
		"role":      actor.Role,
		"from":      ticket.Status,
		"to":        to,
	})
}

// closeOutSteps checks the completion preconditions and marks every open step
// COMPLETED. Dependencies are judged against the state before the completion,
// so two open steps never satisfy each other.
func (s *TicketService) closeOutSteps(ctx context.Context, actor *domain.User, ticket *domain.Ticket) ([]string, error) {
	if ticket.RequiresFinanceApproval && ticket.LatestFinanceStatus != domain.FinanceStatusApproved {
		return nil, errorutil.NewPreconditionFailed("finance approval required before completion", map[string]any{
			"ticket_id":      ticket.ID,
			"requirement":    RequirementFinanceApproval,
			"finance_status": ticket.LatestFinanceStatus,
		})
	}

	steps, err := s.listSteps(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	docs, err := s.listDocuments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	var open []domain.WorkflowStep
	for _, step := range steps {
		if step.Status.IsDone() {
			continue
		}
		if err := s.checkStepGates(ticket, step, steps, docs, actor); err != nil {
			return nil, err
		}
		open = append(open, step)
	}

	for _, step := range open {
		if err := s.steps.UpdateStatus(ctx, step.ID, domain.StepStatusCompleted); err != nil {
			return nil, storeErr(err, "workflow step", map[string]any{"step_id": step.ID})
		}
	}
	return stepIDs(open), nil
}

// checkStepGates runs the dependency resolver and the document gate for step.
func (c *core) checkStepGates(ticket *domain.Ticket, step domain.WorkflowStep, steps []domain.WorkflowStep, docs []domain.Document, actor *domain.User) error {
	if res := workflow.Resolve(step, steps); !res.CanProceed {
		return errorutil.NewPreconditionFailed("step dependencies not satisfied", map[string]any{
			"ticket_id":       ticket.ID,
			"step_id":         step.ID,
			"step_title":      step.Title,
			"requirement":     RequirementDependencies,
			"dependency_mode": step.DependencyMode,
			"unmet":           res.Unmet,
		})
	}
	gate := c.gate.Evaluate(workflow.GateInput{
		Step:      &step,
		Documents: docs,
		Role:      actor.Role,
		Waived:    ticket.WaiveDocumentRequirements,
	})
	if !gate.Satisfied {
		return errorutil.NewPreconditionFailed("step document requirements not satisfied", map[string]any{
			"ticket_id":   ticket.ID,
			"step_id":     step.ID,
			"step_title":  step.Title,
			"requirement": gate.Missing,
		})
	}
	return nil
}
