package service

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-workflow/internal/directory"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// AssignmentService sets who works on a ticket or on one of its steps.
type AssignmentService struct {
	core
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps Dependencies) *AssignmentService {
	return &AssignmentService{core: newCore(deps)}
}

// AssignTicket sets or clears the ticket assignee.
func (s *AssignmentService) AssignTicket(ctx context.Context, actor *domain.User, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbEditSteps); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, ticket, assigneeID); err != nil {
		return nil, err
	}

	var previous *string
	err = s.mutate(ctx, ticketID, func(ctx context.Context) error {
		locked, err := s.lockTicketRow(ctx, ticketID)
		if err != nil {
			return err
		}
		if err := requireEditable(locked); err != nil {
			return err
		}
		previous = locked.AssigneeID
		locked.AssigneeID = assigneeID
		if err := s.tickets.Update(ctx, locked); err != nil {
			return storeErr(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		ticket = locked
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    ticketID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionAssigneeChanged,
			Category:    domain.AuditCategoryTicket,
			OldValue:    map[string]any{"assignee_id": previous},
			NewValue:    map[string]any{"assignee_id": assigneeID},
			Description: "ticket assignee changed",
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventAssigneeChanged, ticketID, actor.ID, events.AssigneeChangedPayload{
		OldAssigneeID: previous,
		NewAssigneeID: assigneeID,
	}))
	return ticket, nil
}

// AssignStep sets or clears the assignee of a step.
func (s *AssignmentService) AssignStep(ctx context.Context, actor *domain.User, stepID string, assigneeID *string) (*domain.WorkflowStep, error) {
	step, ticket, err := s.stepForEdit(ctx, actor, stepID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, ticket, assigneeID); err != nil {
		return nil, err
	}
	return s.setStepAssignee(ctx, actor, step, assigneeID)
}

// SelfAssignStep lets a department member take an unassigned step.
func (s *AssignmentService) SelfAssignStep(ctx context.Context, actor *domain.User, stepID string) (*domain.WorkflowStep, error) {
	step, err := s.loadStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, step.TicketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbProgressSteps); err != nil {
		return nil, err
	}
	if step.AssigneeID != nil && *step.AssigneeID != actor.ID {
		return nil, errorutil.NewInvalidState("step already assigned", map[string]any{
			"step_id":     stepID,
			"assignee_id": *step.AssigneeID,
		})
	}
	self := actor.ID
	return s.setStepAssignee(ctx, actor, step, &self)
}

func (s *AssignmentService) setStepAssignee(ctx context.Context, actor *domain.User, step *domain.WorkflowStep, assigneeID *string) (*domain.WorkflowStep, error) {
	var previous *string
	err := s.mutate(ctx, step.TicketID, func(ctx context.Context) error {
		locked, err := s.lockTicketRow(ctx, step.TicketID)
		if err != nil {
			return err
		}
		if err := requireEditable(locked); err != nil {
			return err
		}
		current, err := s.loadStep(ctx, step.ID)
		if err != nil {
			return err
		}
		previous = current.AssigneeID
		if err := s.steps.UpdateAssignee(ctx, step.ID, assigneeID); err != nil {
			return storeErr(err, "workflow step", map[string]any{"step_id": step.ID})
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    step.TicketID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionAssigneeChanged,
			Category:    domain.AuditCategoryWorkflow,
			OldValue:    map[string]any{"assignee_id": previous},
			NewValue:    map[string]any{"assignee_id": assigneeID},
			Description: "step assignee changed",
			Metadata:    map[string]any{"step_id": step.ID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventAssigneeChanged, step.TicketID, actor.ID, events.AssigneeChangedPayload{
		StepID:        step.ID,
		OldAssigneeID: previous,
		NewAssigneeID: assigneeID,
	}))
	updated := *step
	updated.AssigneeID = assigneeID
	return &updated, nil
}

// checkAssignee accepts overseers anywhere and managers or field engineers of
// the ticket's department. A nil assignee clears the assignment.
func (s *AssignmentService) checkAssignee(ctx context.Context, ticket *domain.Ticket, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	user, err := s.directory.GetUser(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return errorutil.NewValidationError("assignee not found", map[string]any{"assignee_id": *assigneeID})
		}
		return errorutil.NewDependencyUnavailable(dependencyDirectory, err)
	}
	switch user.Role {
	case domain.RoleOverseer:
		return nil
	case domain.RoleManager, domain.RoleFieldEngineer:
		if user.DepartmentID == ticket.DepartmentID {
			return nil
		}
	}
	return errorutil.NewValidationError("assignee cannot work on this ticket", map[string]any{
		"assignee_id":   *assigneeID,
		"role":          user.Role,
		"department_id": user.DepartmentID,
	})
}
