package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/repository"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	core
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title                     string
	Description               string
	Priority                  domain.TicketPriority
	DepartmentID              string
	Category                  string
	AssigneeID                *string
	DueDate                   *time.Time
	RequiresFinanceApproval   *bool
	WaiveDocumentRequirements bool
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	DepartmentID *string
	AssigneeID   *string
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Category     *string
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketSnapshot is a ticket with everything a client needs to render it.
type TicketSnapshot struct {
	Ticket               *domain.Ticket
	Approvals            []domain.FinanceApproval
	AvailableTransitions []domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{core: newCore(deps)}
}

// CreateTicket creates a DRAFT ticket owned by actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, errorutil.NewUnauthorized("actor required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errorutil.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.IsValid() {
		return nil, errorutil.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	departmentID := input.DepartmentID
	if departmentID == "" {
		departmentID = actor.DepartmentID
	}
	if departmentID == "" {
		return nil, errorutil.NewValidationError("department is required", map[string]any{"field": "department_id"})
	}

	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil {
		return nil, storeErr(err, "department", map[string]any{"department_id": departmentID})
	}
	if !dept.IsActive {
		return nil, errorutil.NewValidationError("department inactive", map[string]any{"department_id": departmentID})
	}

	requiresFinance := true
	if input.RequiresFinanceApproval != nil {
		requiresFinance = *input.RequiresFinanceApproval
	}

	ticket := &domain.Ticket{
		Title:                     title,
		Description:               strings.TrimSpace(input.Description),
		Status:                    domain.TicketStatusDraft,
		Priority:                  priority,
		DepartmentID:              departmentID,
		Category:                  strings.TrimSpace(input.Category),
		CreatorID:                 actor.ID,
		AssigneeID:                input.AssigneeID,
		DueDate:                   input.DueDate,
		RequiresFinanceApproval:   requiresFinance,
		WaiveDocumentRequirements: input.WaiveDocumentRequirements,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return storeErr(err, "ticket", nil)
		}
		return s.record(ctx, &domain.AuditLogEntry{
			TicketID:    ticket.ID,
			ActorID:     actor.ID,
			Action:      domain.AuditActionTicketCreated,
			Category:    domain.AuditCategoryTicket,
			NewValue:    map[string]any{"status": ticket.Status, "number": ticket.Number, "priority": ticket.Priority},
			Description: "ticket created",
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventTicketCreated, ticket.ID, actor.ID, events.TicketCreatedPayload{
		Number:       ticket.Number,
		DepartmentID: ticket.DepartmentID,
		Priority:     ticket.Priority,
		Title:        ticket.Title,
	}))
	return ticket, nil
}

// GetTicket returns the ticket snapshot: steps with their lock flags,
// attachments, finance history and the transitions actor may request.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*TicketSnapshot, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbView); err != nil {
		return nil, err
	}

	var (
		steps     []domain.WorkflowStep
		docs      []domain.Document
		approvals []domain.FinanceApproval
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		steps, err = s.listSteps(gctx, ticketID)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = s.listDocuments(gctx, ticketID)
		return err
	})
	g.Go(func() error {
		var err error
		approvals, err = s.approvals.ListByTicket(gctx, ticketID)
		return storeErr(err, "finance approvals", map[string]any{"ticket_id": ticketID})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	workflow.MarkDependencyLocks(steps)
	ticket.Steps = steps
	for _, doc := range docs {
		if doc.StepID == nil {
			ticket.Attachments = append(ticket.Attachments, doc)
		}
	}

	return &TicketSnapshot{
		Ticket:               ticket,
		Approvals:            approvals,
		AvailableTransitions: s.availableFor(actor, ticket, steps),
	}, nil
}

// AvailableTransitions lists the statuses actor may move the ticket to now.
func (s *TicketService) AvailableTransitions(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketStatus, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbView); err != nil {
		return nil, err
	}
	steps, err := s.listSteps(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.availableFor(actor, ticket, steps), nil
}

func (s *TicketService) availableFor(actor *domain.User, ticket *domain.Ticket, steps []domain.WorkflowStep) []domain.TicketStatus {
	allowed := s.permissions.Allowed(actor, ticket)
	result := []domain.TicketStatus{}
	for _, to := range workflow.AvailableTransitions(ticket, steps) {
		verb, _ := workflow.TransitionVerb(ticket.Status, to)
		if allowed.Can(verb) {
			result = append(result, to)
		}
	}
	return result
}

// ListTickets returns tickets visible to actor. Requesters only see their own;
// managers and field engineers are scoped to their department.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, errorutil.NewUnauthorized("actor required")
	}
	repoFilter := repository.TicketFilter{
		DepartmentID: filter.DepartmentID,
		AssigneeID:   filter.AssigneeID,
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		Category:     filter.Category,
		SearchTerm:   filter.SearchTerm,
		CreatedFrom:  filter.CreatedFrom,
		CreatedTo:    filter.CreatedTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	applyActorScope(&repoFilter, actor)

	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, storeErr(err, "tickets", nil)
	}
	return tickets, nil
}

// ListAudit returns the ticket's audit trail in timestamp order.
func (s *TicketService) ListAudit(ctx context.Context, actor *domain.User, ticketID string, limit, offset int) ([]domain.AuditLogEntry, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, workflow.VerbView); err != nil {
		return nil, err
	}
	return s.audit.List(ctx, ticketID, limit, offset)
}

func applyActorScope(filter *repository.TicketFilter, actor *domain.User) {
	switch actor.Role {
	case domain.RoleOverseer, domain.RoleFinance:
		return
	case domain.RoleManager, domain.RoleFieldEngineer:
		dept := actor.DepartmentID
		filter.DepartmentID = &dept
	default:
		creator := actor.ID
		filter.CreatorID = &creator
	}
}
