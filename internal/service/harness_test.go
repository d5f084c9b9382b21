package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/lock"
	"github.com/spec-kit/ticket-workflow/internal/storage"
	"github.com/spec-kit/ticket-workflow/internal/workflow"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

const (
	deptOps   = "dept-ops"
	deptHR    = "dept-hr"
	remarks   = "moving it along"
	certBytes = "signed completion certificate"
)

type eventLog struct {
	mu    sync.Mutex
	types []events.EventType
}

func (l *eventLog) handle(ctx context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, event.Type)
	return nil
}

func (l *eventLog) seen() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.EventType(nil), l.types...)
}

type harness struct {
	store  *memStore
	dir    *memDirectory
	blobs  *storage.FileStore
	events *eventLog

	tickets     *TicketService
	steps       *StepService
	finance     *FinanceService
	documents   *DocumentService
	assignments *AssignmentService

	requester    *domain.User
	manager      *domain.User
	overseer     *domain.User
	engineer     *domain.User
	officer      *domain.User
	otherOfficer *domain.User
	hrManager    *domain.User
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithLocker(t, lock.NewLocalLocker(3*time.Second))
}

func newHarnessWithLocker(t *testing.T, locker lock.Locker) *harness {
	t.Helper()

	store := newMemStore()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		store:        store,
		blobs:        blobs,
		events:       &eventLog{},
		requester:    &domain.User{ID: "u-requester", Name: "Rita", Role: domain.RoleRequester, DepartmentID: deptOps},
		manager:      &domain.User{ID: "u-manager", Name: "Max", Role: domain.RoleManager, DepartmentID: deptOps},
		overseer:     &domain.User{ID: "u-overseer", Name: "Olga", Role: domain.RoleOverseer},
		engineer:     &domain.User{ID: "u-engineer", Name: "Eli", Role: domain.RoleFieldEngineer, DepartmentID: deptOps},
		officer:      &domain.User{ID: "u-officer", Name: "Fay", Role: domain.RoleFinance},
		otherOfficer: &domain.User{ID: "u-officer-2", Name: "Finn", Role: domain.RoleFinance},
		hrManager:    &domain.User{ID: "u-hr-manager", Name: "Hal", Role: domain.RoleManager, DepartmentID: deptHR},
	}
	h.dir = &memDirectory{users: map[string]domain.User{}}
	for _, user := range []*domain.User{h.requester, h.manager, h.overseer, h.engineer, h.officer, h.otherOfficer, h.hrManager} {
		h.dir.users[user.ID] = *user
	}

	ctx := context.Background()
	departments := memDepartments{store}
	require.NoError(t, departments.Create(ctx, &domain.Department{ID: deptOps, Name: "Operations", IsActive: true}))
	require.NoError(t, departments.Create(ctx, &domain.Department{ID: deptHR, Name: "HR", IsActive: true}))

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, h.events.handle)
	}

	deps := Dependencies{
		TicketRepo:     memTickets{store},
		StepRepo:       memSteps{store},
		ApprovalRepo:   memApprovals{store},
		DocumentRepo:   memDocuments{store},
		DepartmentRepo: departments,
		Audit:          NewAuditRecorder(memAudit{store}),
		Tx:             store,
		Locker:         locker,
		Directory:      h.dir,
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Permissions:    workflow.DefaultPermissions(),
		Gate:           workflow.NewDocumentGate(workflow.NewRoleSet(domain.RoleFieldEngineer, domain.RoleManager)),
		Logger:         zap.NewNop(),
	}
	h.tickets = NewTicketService(deps)
	h.assignments = NewAssignmentService(deps)
	h.steps = NewStepService(deps)
	h.finance = NewFinanceService(deps)
	h.documents = NewDocumentService(deps)
	return h
}

// draftTicket creates a DRAFT ticket owned by the requester.
func (h *harness) draftTicket(t *testing.T, requiresFinance bool) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.CreateTicket(context.Background(), h.requester, TicketCreateInput{
		Title:                   "Replace lobby air conditioner",
		RequiresFinanceApproval: &requiresFinance,
	})
	require.NoError(t, err)
	return ticket
}

// activeTicket walks a fresh ticket to ACTIVE.
func (h *harness) activeTicket(t *testing.T, requiresFinance bool) *domain.Ticket {
	t.Helper()
	ticket := h.draftTicket(t, requiresFinance)
	h.mustTransition(t, h.requester, ticket.ID, domain.TicketStatusDraft, domain.TicketStatusCreated)
	return h.mustTransition(t, h.manager, ticket.ID, domain.TicketStatusCreated, domain.TicketStatusActive)
}

func (h *harness) transition(actor *domain.User, ticketID string, from, to domain.TicketStatus) (*domain.Ticket, error) {
	return h.tickets.TransitionStatus(context.Background(), actor, TransitionRequest{
		TicketID:      ticketID,
		CurrentStatus: from,
		NewStatus:     to,
		Remarks:       remarks,
	})
}

func (h *harness) mustTransition(t *testing.T, actor *domain.User, ticketID string, from, to domain.TicketStatus) *domain.Ticket {
	t.Helper()
	ticket, err := h.transition(actor, ticketID, from, to)
	require.NoError(t, err)
	return ticket
}

func (h *harness) addStep(t *testing.T, ticketID string, input StepCreateInput) *domain.WorkflowStep {
	t.Helper()
	input.TicketID = ticketID
	if input.Title == "" {
		input.Title = "Inspect unit"
	}
	step, err := h.steps.AddStep(context.Background(), h.manager, input)
	require.NoError(t, err)
	return step
}

func (h *harness) moveStep(actor *domain.User, stepID string, to domain.StepStatus) error {
	_, err := h.steps.UpdateStepStatus(context.Background(), actor, StepStatusInput{StepID: stepID, NewStatus: to})
	return err
}

func (h *harness) completeStep(t *testing.T, stepID string) {
	t.Helper()
	require.NoError(t, h.moveStep(h.manager, stepID, domain.StepStatusActive))
	require.NoError(t, h.moveStep(h.manager, stepID, domain.StepStatusCompleted))
}

func (h *harness) uploadMandatory(t *testing.T, stepID, requirement string) *domain.Document {
	t.Helper()
	doc, err := h.documents.Upload(context.Background(), h.manager, DocumentUpload{
		Owner:           DocumentOwner{StepID: &stepID},
		File:            Upload{FileName: requirement + ".pdf", MimeType: "application/pdf", Content: strings.NewReader(requirement)},
		IsMandatory:     true,
		RequirementName: requirement,
	})
	require.NoError(t, err)
	return doc
}

// financeReadyTicket is an ACTIVE finance ticket whose only step is COMPLETED.
func (h *harness) financeReadyTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := h.activeTicket(t, true)
	step := h.addStep(t, ticket.ID, StepCreateInput{})
	h.completeStep(t, step.ID)
	return ticket
}

func detail(t *testing.T, err error, key string) any {
	t.Helper()
	domainErr := errorutil.ToDomainError(err)
	require.NotNil(t, domainErr)
	return domainErr.Details[key]
}
