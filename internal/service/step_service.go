package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// StepService edits a ticket's workflow tree.
type StepService struct {
	core
}

// NewStepService constructs the service.
func NewStepService(deps Dependencies) *StepService {
	return &StepService{core: newCore(deps)}
}

// StepCreateInput describes a new workflow step.
type StepCreateInput struct {
	TicketID                      string
	Title                         string
	Level1                        int
	Level2                        int
	Level3                        int
	IsParallel                    bool
	DependencyMode                domain.DependencyMode
	DependsOn                     []string
	MandatoryDocuments            []string
	CompletionCertificateRequired bool
	AssigneeID                    *string
}

// StepStatusInput asks for a step status change.
type StepStatusInput struct {
	StepID    string
	NewStatus domain.StepStatus
	Remarks   string
}

// StepGates is the advisory view of both gates for one step.
type StepGates struct {
	Step         *domain.WorkflowStep
	Dependencies workflow.Resolution
	Documents    workflow.GateResult
}

// AddStep appends a step to the ticket's workflow.
func (s *StepService) AddStep(ctx context.Context, actor *domain.User, input StepCreateInput) (*domain.WorkflowStep, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errorutil.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	mode := input.DependencyMode
	if mode == "" {
		mode = domain.DependencyModeAll
	}
	if !mode.IsValid() {
		return nil, errorutil.NewValidationError("invalid dependency mode", map[string]any{"dependency_mode": mode})
	}
	var mandatory []string
	for _, name := range input.MandatoryDocuments {
		if name = strings.TrimSpace(name); name != "" {
			mandatory = append(mandatory, name)
		}
	}

	ticket, err := s.loadTicket(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbEditSteps); err != nil {
		return nil, err
	}

	step := &domain.WorkflowStep{
		TicketID:                      input.TicketID,
		Title:                         title,
		Status:                        domain.StepStatusCreated,
		Level1:                        input.Level1,
		Level2:                        input.Level2,
		Level3:                        input.Level3,
		IsParallel:                    input.IsParallel,
		DependencyMode:                mode,
		MandatoryDocuments:            mandatory,
		CompletionCertificateRequired: input.CompletionCertificateRequired,
		AssigneeID:                    input.AssigneeID,
	}

	err = s.mutate(ctx, input.TicketID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, input.TicketID)
		if err != nil {
			return err
		}
		if err := requireEditable(current); err != nil {
			return err
		}
		steps, err := s.listSteps(ctx, current.ID)
		if err != nil {
			return err
		}
		deps, err := validateNewStepDependencies(steps, input.DependsOn)
		if err != nil {
			return err
		}
		step.DependsOn = deps
		if err := s.steps.Create(ctx, step); err != nil {
			return storeErr(err, "workflow step", nil)
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    current.ID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionStepCreated,
			Category:    domain.AuditCategoryWorkflow,
			NewValue:    map[string]any{"step_id": step.ID, "title": step.Title, "depends_on": step.DependsOn},
			Description: "workflow step added",
		})
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// UpdateStepStatus moves a step. Starting a step requires its dependencies;
// completing it requires dependencies and documents.
func (s *StepService) UpdateStepStatus(ctx context.Context, actor *domain.User, input StepStatusInput) (*domain.WorkflowStep, error) {
	if !input.NewStatus.IsValid() {
		return nil, errorutil.NewValidationError("unknown step status", map[string]any{"new_status": input.NewStatus})
	}
	step, err := s.loadStep(ctx, input.StepID)
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

	var oldStatus domain.StepStatus
	err = s.mutate(ctx, ticket.ID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.TicketStatusActive {
			return errorutil.NewInvalidState("steps can only move while the ticket is ACTIVE", map[string]any{
				"ticket_id":       current.ID,
				"expected_status": domain.TicketStatusActive,
				"actual_status":   current.Status,
			})
		}
		steps, err := s.listSteps(ctx, current.ID)
		if err != nil {
			return err
		}
		target := findStep(steps, input.StepID)
		if target == nil {
			return errorutil.NewNotFound("workflow step", map[string]any{"step_id": input.StepID})
		}
		if !workflow.IsValidStepTransition(target.Status, input.NewStatus) {
			return errorutil.NewInvalidTransition("step transition not allowed", map[string]any{
				"step_id": target.ID,
				"from":    target.Status,
				"to":      input.NewStatus,
			})
		}

		switch {
		case target.Status == domain.StepStatusCreated && input.NewStatus == domain.StepStatusActive:
			if res := workflow.Resolve(*target, steps); !res.CanProceed {
				return errorutil.NewPreconditionFailed("step dependencies not satisfied", map[string]any{
					"ticket_id":   current.ID,
					"step_id":     target.ID,
					"step_title":  target.Title,
					"requirement": RequirementDependencies,
					"unmet":       res.Unmet,
				})
			}
		case input.NewStatus == domain.StepStatusCompleted:
			docs, err := s.listDocuments(ctx, current.ID)
			if err != nil {
				return err
			}
			if err := s.checkStepGates(current, *target, steps, docs, actor); err != nil {
				return err
			}
		}

		oldStatus = target.Status
		if err := s.steps.UpdateStatus(ctx, target.ID, input.NewStatus); err != nil {
			return storeErr(err, "workflow step", map[string]any{"step_id": target.ID})
		}
		target.Status = input.NewStatus
		step = target
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    current.ID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionStepStatusChanged,
			Category:    domain.AuditCategoryWorkflow,
			OldValue:    map[string]any{"step_id": target.ID, "status": oldStatus},
			NewValue:    map[string]any{"step_id": target.ID, "status": target.Status},
			Description: strings.TrimSpace(input.Remarks),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventStepStatusChanged, ticket.ID, actor.ID, events.StepStatusChangedPayload{
		StepID:    step.ID,
		OldStatus: oldStatus,
		NewStatus: step.Status,
	}))
	return step, nil
}

// AddDependency makes stepID depend on dependsOnID, keeping the graph acyclic.
func (s *StepService) AddDependency(ctx context.Context, actor *domain.User, stepID, dependsOnID string) (*domain.WorkflowStep, error) {
	step, ticket, err := s.stepForEdit(ctx, actor, stepID)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, ticket.ID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if err := requireEditable(current); err != nil {
			return err
		}
		steps, err := s.listSteps(ctx, current.ID)
		if err != nil {
			return err
		}
		if err := workflow.ValidateEdge(steps, stepID, dependsOnID); err != nil {
			return edgeError(err, stepID, dependsOnID)
		}
		if err := s.steps.AddDependency(ctx, stepID, dependsOnID); err != nil {
			return storeErr(err, "workflow step dependency", nil)
		}
		step.DependsOn = append(findStep(steps, stepID).DependsOn, dependsOnID)
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    current.ID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionDependencyAdded,
			Category:    domain.AuditCategoryWorkflow,
			NewValue:    map[string]any{"step_id": stepID, "depends_on_step_id": dependsOnID},
			Description: "dependency added",
		})
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// RemoveDependency drops the edge stepID -> dependsOnID.
func (s *StepService) RemoveDependency(ctx context.Context, actor *domain.User, stepID, dependsOnID string) error {
	_, ticket, err := s.stepForEdit(ctx, actor, stepID)
	if err != nil {
		return err
	}
	return s.mutate(ctx, ticket.ID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if err := requireEditable(current); err != nil {
			return err
		}
		if err := s.steps.RemoveDependency(ctx, stepID, dependsOnID); err != nil {
			return storeErr(err, "workflow step dependency", map[string]any{
				"step_id":            stepID,
				"depends_on_step_id": dependsOnID,
			})
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    current.ID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionDependencyRemoved,
			Category:    domain.AuditCategoryWorkflow,
			OldValue:    map[string]any{"step_id": stepID, "depends_on_step_id": dependsOnID},
			Description: "dependency removed",
		})
	})
}

// DeleteStep removes a step nothing depends on. Steps with dependents are
// refused so that no "all" gate is silently loosened by a dangling edge.
func (s *StepService) DeleteStep(ctx context.Context, actor *domain.User, stepID string) error {
	_, ticket, err := s.stepForEdit(ctx, actor, stepID)
	if err != nil {
		return err
	}
	var storageKeys []string
	err = s.mutate(ctx, ticket.ID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if err := requireEditable(current); err != nil {
			return err
		}
		steps, err := s.listSteps(ctx, current.ID)
		if err != nil {
			return err
		}
		target := findStep(steps, stepID)
		if target == nil {
			return errorutil.NewNotFound("workflow step", map[string]any{"step_id": stepID})
		}
		if dependents := workflow.Dependents(stepID, steps); len(dependents) > 0 {
			return errorutil.NewPreconditionFailed("other steps depend on this step", map[string]any{
				"ticket_id":   current.ID,
				"step_id":     stepID,
				"requirement": RequirementNoDependentSteps,
				"dependents":  dependents,
			})
		}
		docs, err := s.documents.ListByStep(ctx, stepID)
		if err != nil {
			return storeErr(err, "documents", map[string]any{"step_id": stepID})
		}
		storageKeys = storageKeys[:0]
		for _, doc := range docs {
			storageKeys = append(storageKeys, doc.StorageKey)
		}
		if err := s.steps.Delete(ctx, stepID); err != nil {
			return storeErr(err, "workflow step", map[string]any{"step_id": stepID})
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID: current.ID,
			ActorID:  actor.ID,
			Action:   domain.AuditActionStepDeleted,
			Category: domain.AuditCategoryWorkflow,
			OldValue: map[string]any{
				"step_id":        target.ID,
				"title":          target.Title,
				"status":         target.Status,
				"document_count": len(docs),
			},
			Description: "workflow step deleted",
		})
	})
	if err != nil {
		return err
	}

	// Document rows went with the step; their blobs are removed once committed.
	for _, key := range storageKeys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("delete step document blob", zap.String("step_id", stepID), zap.String("storage_key", key), zap.Error(err))
		}
	}
	return nil
}

// StepGateStatus evaluates both gates for the step as actor would face them.
func (s *StepService) StepGateStatus(ctx context.Context, actor *domain.User, stepID string) (*StepGates, error) {
	step, err := s.loadStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, step.TicketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbView); err != nil {
		return nil, err
	}
	steps, err := s.listSteps(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	docs, err := s.listDocuments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	workflow.MarkDependencyLocks(steps)
	if current := findStep(steps, stepID); current != nil {
		step = current
	}
	return &StepGates{
		Step:         step,
		Dependencies: workflow.Resolve(*step, steps),
		Documents: s.gate.Evaluate(workflow.GateInput{
			Step:      step,
			Documents: docs,
			Role:      actor.Role,
			Waived:    ticket.WaiveDocumentRequirements,
		}),
	}, nil
}

// stepForEdit loads a step and its ticket for a workflow edit by actor.
func (c *core) stepForEdit(ctx context.Context, actor *domain.User, stepID string) (*domain.WorkflowStep, *domain.Ticket, error) {
	step, err := c.loadStep(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	ticket, err := c.loadTicket(ctx, step.TicketID)
	if err != nil {
		return nil, nil, err
	}
	if err := c.authorize(actor, ticket, workflow.VerbEditSteps); err != nil {
		return nil, nil, err
	}
	return step, ticket, nil
}

func requireEditable(ticket *domain.Ticket) error {
	if isTerminal(ticket.Status) || ticket.Status == domain.TicketStatusSentToFinance {
		return errorutil.NewInvalidState("workflow cannot be edited in the current ticket status", map[string]any{
			"ticket_id":     ticket.ID,
			"actual_status": ticket.Status,
		})
	}
	return nil
}

func validateNewStepDependencies(steps []domain.WorkflowStep, dependsOn []string) ([]string, error) {
	seen := map[string]bool{}
	var result []string
	for _, id := range dependsOn {
		if seen[id] {
			continue
		}
		if findStep(steps, id) == nil {
			return nil, errorutil.NewValidationError("dependency references a step outside the ticket", map[string]any{
				"depends_on_step_id": id,
			})
		}
		seen[id] = true
		result = append(result, id)
	}
	return result, nil
}

func edgeError(err error, stepID, dependsOnID string) error {
	details := map[string]any{"step_id": stepID, "depends_on_step_id": dependsOnID}
	if errors.Is(err, workflow.ErrDependencyCycle) {
		details["reason"] = "cycle"
	}
	return errorutil.NewValidationError(err.Error(), details)
}

func findStep(steps []domain.WorkflowStep, id string) *domain.WorkflowStep {
	for i := range steps {
		if steps[i].ID == id {
			return &steps[i]
		}
	}
	return nil
}
