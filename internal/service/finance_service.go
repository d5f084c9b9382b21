package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/directory"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// FinanceService runs the finance approval sub-process.
type FinanceService struct {
	core
}

// NewFinanceService constructs the service.
func NewFinanceService(deps Dependencies) *FinanceService {
	return &FinanceService{core: newCore(deps)}
}

// FinanceSubmission sends a ticket to a finance officer.
type FinanceSubmission struct {
	TicketID         string
	TentativeCost    decimal.Decimal
	CostDeductedFrom domain.CostBearer
	FinanceOfficerID string
	Remarks          string
}

// FinanceDecision approves or rejects a pending approval.
type FinanceDecision struct {
	ApprovalID      string
	TicketID        string
	Remarks         string
	RejectionReason string
	Document        *Upload
}

// Submit creates a pending approval and moves the ticket to SENT_TO_FINANCE.
func (s *FinanceService) Submit(ctx context.Context, actor *domain.User, input FinanceSubmission) (*domain.FinanceApproval, error) {
	if actor == nil {
		return nil, errorutil.NewUnauthorized("actor required")
	}
	if !input.TentativeCost.GreaterThan(decimal.Zero) {
		return nil, errorutil.NewValidationError("tentative cost must be greater than zero", map[string]any{
			"field":          "tentative_cost",
			"tentative_cost": input.TentativeCost.String(),
		})
	}
	if !input.CostDeductedFrom.IsValid() {
		return nil, errorutil.NewValidationError("unknown cost bearer", map[string]any{
			"field":              "cost_deducted_from",
			"cost_deducted_from": input.CostDeductedFrom,
		})
	}
	if err := validateRemarks("remarks", input.Remarks, minRemarksLength); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.FinanceOfficerID) == "" {
		return nil, errorutil.NewValidationError("finance officer is required", map[string]any{"field": "finance_officer_id"})
	}

	ticket, err := s.loadTicket(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbSendToFinance); err != nil {
		return nil, err
	}
	if err := s.checkOfficer(ctx, input.FinanceOfficerID); err != nil {
		return nil, err
	}

	approval := &domain.FinanceApproval{
		TicketID:         input.TicketID,
		TentativeCost:    input.TentativeCost,
		CostDeductedFrom: input.CostDeductedFrom,
		FinanceOfficerID: input.FinanceOfficerID,
		SubmittedBy:      actor.ID,
		Remarks:          strings.TrimSpace(input.Remarks),
		Status:           domain.ApprovalStatusPending,
	}
	var oldStatus domain.TicketStatus
	err = s.mutate(ctx, input.TicketID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, input.TicketID)
		if err != nil {
			return err
		}
		if _, ok := workflow.TransitionVerb(current.Status, domain.TicketStatusSentToFinance); !ok {
			return errorutil.NewInvalidTransition("ticket cannot be sent to finance from its current status", map[string]any{
				"ticket_id": current.ID,
				"from":      current.Status,
				"to":        domain.TicketStatusSentToFinance,
			})
		}
		if !current.RequiresFinanceApproval {
			return errorutil.NewPreconditionFailed("ticket does not require finance approval", map[string]any{
				"ticket_id":   current.ID,
				"requirement": RequirementFinanceRequired,
			})
		}
		steps, err := s.listSteps(ctx, current.ID)
		if err != nil {
			return err
		}
		if !workflow.AllStepsDone(steps) {
			return errorutil.NewPreconditionFailed("all workflow steps must be completed", map[string]any{
				"ticket_id":   current.ID,
				"requirement": RequirementStepsCompleted,
				"open_steps":  openStepIDs(steps),
			})
		}
		pending, err := s.approvals.HasPending(ctx, current.ID)
		if err != nil {
			return storeErr(err, "finance approval", nil)
		}
		if pending {
			return errorutil.NewInvalidState("ticket already has a pending finance approval", map[string]any{
				"ticket_id": current.ID,
			})
		}

		approval.SubmissionNumber = current.FinanceSubmissionCount + 1
		if err := s.approvals.Create(ctx, approval); err != nil {
			return storeErr(err, "finance approval", nil)
		}

		oldStatus = current.Status
		current.FinanceSubmissionCount = approval.SubmissionNumber
		current.Status = domain.TicketStatusSentToFinance
		current.LatestFinanceStatus = domain.FinanceStatusPending
		if err := s.tickets.Update(ctx, current); err != nil {
			return storeErr(err, "ticket", map[string]any{"ticket_id": current.ID})
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID: current.ID,
			ActorID:  actor.ID,
			Action:   domain.AuditActionFinanceSubmitted,
			Category: domain.AuditCategoryFinance,
			OldValue: map[string]any{"status": oldStatus},
			NewValue: map[string]any{
				"status":                   current.Status,
				"approval_id":              approval.ID,
				"finance_submission_count": current.FinanceSubmissionCount,
			},
			Description: approval.Remarks,
			Metadata: map[string]any{
				"tentative_cost":     approval.TentativeCost.String(),
				"cost_deducted_from": approval.CostDeductedFrom,
				"finance_officer_id": approval.FinanceOfficerID,
			},
		})
	})
	if err != nil {
		s.logger.Debug("finance submission rejected",
			zap.String("ticket_id", input.TicketID),
			zap.String("code", errorutil.CodeOf(err)),
		)
		return nil, err
	}

	s.publish(ctx, events.New(events.EventFinanceSubmitted, input.TicketID, actor.ID, events.FinanceSubmittedPayload{
		ApprovalID:       approval.ID,
		SubmissionNumber: approval.SubmissionNumber,
		TentativeCost:    approval.TentativeCost,
		FinanceOfficerID: approval.FinanceOfficerID,
	}))
	s.publish(ctx, events.New(events.EventTicketStatusChanged, input.TicketID, actor.ID, events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: domain.TicketStatusSentToFinance,
		Remarks:   approval.Remarks,
	}))
	return approval, nil
}

// Approve records the assigned officer's approval.
func (s *FinanceService) Approve(ctx context.Context, actor *domain.User, input FinanceDecision) (*domain.FinanceApproval, error) {
	return s.decide(ctx, actor, input, domain.ApprovalStatusApproved)
}

// Reject records the assigned officer's rejection. The reason is mandatory.
func (s *FinanceService) Reject(ctx context.Context, actor *domain.User, input FinanceDecision) (*domain.FinanceApproval, error) {
	if err := validateRemarks("rejection_reason", input.RejectionReason, minRejectionReasonLength); err != nil {
		return nil, err
	}
	return s.decide(ctx, actor, input, domain.ApprovalStatusRejected)
}

// History lists the ticket's approvals, newest submission first.
func (s *FinanceService) History(ctx context.Context, actor *domain.User, ticketID string) ([]domain.FinanceApproval, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbView); err != nil {
		return nil, err
	}
	approvals, err := s.approvals.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeErr(err, "finance approvals", map[string]any{"ticket_id": ticketID})
	}
	return approvals, nil
}

func (s *FinanceService) decide(ctx context.Context, actor *domain.User, input FinanceDecision, decision domain.ApprovalStatus) (*domain.FinanceApproval, error) {
	if actor == nil {
		return nil, errorutil.NewUnauthorized("actor required")
	}
	if _, err := s.loadTicket(ctx, input.TicketID); err != nil {
		return nil, err
	}

	blob, err := s.putBlob(ctx, input.TicketID, input.Document)
	if err != nil {
		return nil, err
	}

	var (
		approval  *domain.FinanceApproval
		oldStatus domain.TicketStatus
		newStatus domain.TicketStatus
	)
	err = s.mutate(ctx, input.TicketID, func(ctx context.Context) error {
		current, err := s.lockTicketRow(ctx, input.TicketID)
		if err != nil {
			return err
		}
		approval, err = s.approvals.GetByIDForUpdate(ctx, input.ApprovalID)
		if err != nil {
			return storeErr(err, "finance approval", map[string]any{"approval_id": input.ApprovalID})
		}
		if approval.TicketID != current.ID {
			return errorutil.NewNotFound("finance approval", map[string]any{
				"approval_id": input.ApprovalID,
				"ticket_id":   current.ID,
			})
		}
		if approval.FinanceOfficerID != actor.ID {
			return errorutil.NewPermissionDenied("approval is assigned to another finance officer", map[string]any{
				"approval_id": approval.ID,
				"actor_id":    actor.ID,
			})
		}
		if approval.Status != domain.ApprovalStatusPending {
			return errorutil.NewInvalidState("finance approval is not pending", map[string]any{
				"approval_id":     approval.ID,
				"expected_status": domain.ApprovalStatusPending,
				"actual_status":   approval.Status,
			})
		}

		metadata := map[string]any{"approval_id": approval.ID}
		if blob != nil {
			doc := documentFor(blob, input.Document, current.ID, actor.ID)
			if err := s.documents.Create(ctx, doc); err != nil {
				return storeErr(err, "document", nil)
			}
			approval.ApprovalDocumentID = &doc.ID
			metadata["approval_document_id"] = doc.ID
		}

		now := time.Now().UTC()
		approval.Status = decision
		approval.DecidedAt = &now
		action := domain.AuditActionFinanceApproved
		description := strings.TrimSpace(input.Remarks)
		newStatus = domain.TicketStatusApprovedByFinance
		if remarks := strings.TrimSpace(input.Remarks); remarks != "" {
			approval.ApprovalRemarks = &remarks
		}
		if decision == domain.ApprovalStatusRejected {
			reason := strings.TrimSpace(input.RejectionReason)
			approval.RejectionReason = &reason
			action = domain.AuditActionFinanceRejected
			description = reason
			newStatus = domain.TicketStatusRejectedByFinance
		}
		if err := s.approvals.UpdateDecision(ctx, approval); err != nil {
			return storeErr(err, "finance approval", map[string]any{"approval_id": approval.ID})
		}

		oldStatus = current.Status
		current.Status = newStatus
		current.LatestFinanceStatus = domain.FinanceStatus(decision)
		if err := s.tickets.Update(ctx, current); err != nil {
			return storeErr(err, "ticket", map[string]any{"ticket_id": current.ID})
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    current.ID,
			ActorID:     actor.ID,
			Action:      action,
			Category:    domain.AuditCategoryFinance,
			OldValue:    map[string]any{"status": oldStatus, "approval_status": domain.ApprovalStatusPending},
			NewValue:    map[string]any{"status": newStatus, "approval_status": decision},
			Description: description,
			Metadata:    metadata,
		})
	})
	if err != nil {
		s.discardBlob(blob)
		s.logger.Debug("finance decision rejected",
			zap.String("ticket_id", input.TicketID),
			zap.String("approval_id", input.ApprovalID),
			zap.String("code", errorutil.CodeOf(err)),
		)
		return nil, err
	}

	s.publish(ctx, events.New(events.EventFinanceDecided, input.TicketID, actor.ID, events.FinanceDecidedPayload{
		ApprovalID: approval.ID,
		Decision:   decision,
		NewStatus:  newStatus,
	}))
	s.publish(ctx, events.New(events.EventTicketStatusChanged, input.TicketID, actor.ID, events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}))
	return approval, nil
}

// checkOfficer resolves the officer through the directory.
func (s *FinanceService) checkOfficer(ctx context.Context, officerID string) error {
	officer, err := s.directory.GetUser(ctx, officerID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return errorutil.NewValidationError("finance officer not found", map[string]any{"finance_officer_id": officerID})
		}
		return errorutil.NewDependencyUnavailable(dependencyDirectory, err)
	}
	if officer.Role != domain.RoleFinance {
		return errorutil.NewValidationError("assigned user is not a finance officer", map[string]any{
			"finance_officer_id": officerID,
			"role":               officer.Role,
		})
	}
	return nil
}

func openStepIDs(steps []domain.WorkflowStep) []string {
	var ids []string
	for _, step := range steps {
		if step.Status != domain.StepStatusCompleted {
			ids = append(ids, step.ID)
		}
	}
	return ids
}
