//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/persistence/pgtest"
)

type fixture struct {
	pool      *pgxpool.Pool
	dept      *domain.Department
	requester *domain.User
	officer   *domain.User
	tickets   TicketRepository
	steps     WorkflowStepRepository
	approvals FinanceApprovalRepository
	documents DocumentRepository
	audit     AuditLogRepository
	tx        *TxManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := pgtest.NewPool(t)
	ctx := context.Background()

	dept := &domain.Department{Name: "Operations " + uuid.NewString(), IsActive: true}
	require.NoError(t, NewDepartmentRepository(pool).Create(ctx, dept))

	users := NewUserRepository(pool)
	requester := &domain.User{Name: "Rita", Role: domain.RoleRequester, DepartmentID: dept.ID}
	officer := &domain.User{Name: "Fay", Role: domain.RoleFinance}
	require.NoError(t, users.Create(ctx, requester))
	require.NoError(t, users.Create(ctx, officer))

	return &fixture{
		pool:      pool,
		dept:      dept,
		requester: requester,
		officer:   officer,
		tickets:   NewTicketRepository(pool),
		steps:     NewWorkflowStepRepository(pool),
		approvals: NewFinanceApprovalRepository(pool),
		documents: NewDocumentRepository(pool),
		audit:     NewAuditLogRepository(pool),
		tx:        NewTxManager(pool),
	}
}

func (f *fixture) ticket(t *testing.T, title string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		Title:                   title,
		Status:                  domain.TicketStatusDraft,
		Priority:                domain.TicketPriorityMedium,
		DepartmentID:            f.dept.ID,
		CreatorID:               f.requester.ID,
		RequiresFinanceApproval: true,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))
	return ticket
}

func TestIntegration_TicketRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.ticket(t, "Replace lobby air conditioner")
	assert.Regexp(t, `^TKT-\d{6}$`, ticket.Number)

	ticket.Status = domain.TicketStatusActive
	ticket.LatestFinanceStatus = domain.FinanceStatusPending
	require.NoError(t, f.tickets.Update(ctx, ticket))

	locked, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusActive, locked.Status)
	assert.Equal(t, domain.FinanceStatusPending, locked.LatestFinanceStatus)

	search := "lobby"
	found, err := f.tickets.ListWithFilter(ctx, TicketFilter{
		DepartmentID: &f.dept.ID,
		Statuses:     []domain.TicketStatus{domain.TicketStatusActive},
		SearchTerm:   &search,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ticket.ID, found[0].ID)

	_, err = f.tickets.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestIntegration_TxManagerRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var created *domain.Ticket

	err := f.tx.RunInTx(ctx, func(ctx context.Context) error {
		created = &domain.Ticket{
			Title:        "Rolled back",
			Status:       domain.TicketStatusDraft,
			Priority:     domain.TicketPriorityLow,
			DepartmentID: f.dept.ID,
			CreatorID:    f.requester.ID,
		}
		if err := f.tickets.Create(ctx, created); err != nil {
			return err
		}
		locked, err := f.tickets.GetByIDForUpdate(ctx, created.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, created.ID, locked.ID)
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = f.tickets.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestIntegration_WorkflowSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(t, "Steps")

	a := &domain.WorkflowStep{TicketID: ticket.ID, Title: "A", Status: domain.StepStatusCreated, Level1: 1, DependencyMode: domain.DependencyModeAll}
	require.NoError(t, f.steps.Create(ctx, a))
	b := &domain.WorkflowStep{
		TicketID:           ticket.ID,
		Title:              "B",
		Status:             domain.StepStatusCreated,
		Level1:             2,
		DependencyMode:     domain.DependencyModeAny,
		DependsOn:          []string{a.ID},
		MandatoryDocuments: []string{"Invoice"},
	}
	require.NoError(t, f.steps.Create(ctx, b))

	steps, err := f.steps.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Empty(t, steps[0].DependsOn)
	assert.Equal(t, []string{a.ID}, steps[1].DependsOn)
	assert.Equal(t, []string{"Invoice"}, steps[1].MandatoryDocuments)

	assert.Error(t, f.steps.AddDependency(ctx, a.ID, a.ID))
	require.NoError(t, f.steps.UpdateStatus(ctx, a.ID, domain.StepStatusActive))
	require.NoError(t, f.steps.UpdateAssignee(ctx, a.ID, &f.requester.ID))

	got, err := f.steps.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusActive, got.Status)
	require.NotNil(t, got.AssigneeID)

	require.NoError(t, f.steps.RemoveDependency(ctx, b.ID, a.ID))
	assert.ErrorIs(t, f.steps.RemoveDependency(ctx, b.ID, a.ID), pgx.ErrNoRows)
	require.NoError(t, f.steps.AddDependency(ctx, b.ID, a.ID))

	require.NoError(t, f.steps.Delete(ctx, a.ID))
	got, err = f.steps.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DependsOn)
}

func TestIntegration_FinanceApprovals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(t, "Finance")

	first := &domain.FinanceApproval{
		TicketID:         ticket.ID,
		SubmissionNumber: 1,
		TentativeCost:    decimal.RequireFromString("1500.50"),
		CostDeductedFrom: domain.CostBearerManagement,
		FinanceOfficerID: f.officer.ID,
		SubmittedBy:      f.requester.ID,
		Remarks:          "Quote for AC",
		Status:           domain.ApprovalStatusPending,
	}
	require.NoError(t, f.approvals.Create(ctx, first))

	pending, err := f.approvals.HasPending(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, pending)

	duplicate := *first
	duplicate.SubmissionNumber = 2
	assert.Error(t, f.approvals.Create(ctx, &duplicate))

	reason := "Quote exceeds the budget."
	now := time.Now().UTC()
	first.Status = domain.ApprovalStatusRejected
	first.RejectionReason = &reason
	first.DecidedAt = &now
	require.NoError(t, f.approvals.UpdateDecision(ctx, first))
	assert.ErrorIs(t, f.approvals.UpdateDecision(ctx, first), pgx.ErrNoRows)

	second := duplicate
	require.NoError(t, f.approvals.Create(ctx, &second))

	history, err := f.approvals.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].SubmissionNumber)
	assert.Equal(t, domain.ApprovalStatusRejected, history[1].Status)
	assert.True(t, decimal.RequireFromString("1500.50").Equal(history[1].TentativeCost))
}

func TestIntegration_DocumentsAndAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(t, "Documents")
	step := &domain.WorkflowStep{TicketID: ticket.ID, Title: "Repair", Status: domain.StepStatusCreated, DependencyMode: domain.DependencyModeAll}
	require.NoError(t, f.steps.Create(ctx, step))

	requirement := "Invoice"
	stepDoc := &domain.Document{
		TicketID:        ticket.ID,
		StepID:          &step.ID,
		FileName:        "invoice.pdf",
		MimeType:        "application/pdf",
		SizeBytes:       42,
		StorageKey:      ticket.ID + "/" + uuid.NewString() + ".pdf",
		IsMandatory:     true,
		RequirementName: &requirement,
		UploadedBy:      f.requester.ID,
	}
	ticketDoc := &domain.Document{
		TicketID:   ticket.ID,
		FileName:   "photo.jpg",
		MimeType:   "image/jpeg",
		SizeBytes:  7,
		StorageKey: ticket.ID + "/" + uuid.NewString() + ".jpg",
		UploadedBy: f.requester.ID,
	}
	require.NoError(t, f.documents.Create(ctx, stepDoc))
	require.NoError(t, f.documents.Create(ctx, ticketDoc))

	all, err := f.documents.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	onStep, err := f.documents.ListByStep(ctx, step.ID)
	require.NoError(t, err)
	require.Len(t, onStep, 1)
	assert.Equal(t, requirement, *onStep[0].RequirementName)

	require.NoError(t, f.documents.Delete(ctx, ticketDoc.ID))
	_, err = f.documents.GetByID(ctx, ticketDoc.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	for _, action := range []domain.AuditAction{domain.AuditActionTicketCreated, domain.AuditActionStatusChanged} {
		require.NoError(t, f.audit.Append(ctx, &domain.AuditLogEntry{
			TicketID: ticket.ID,
			ActorID:  f.requester.ID,
			Action:   action,
			Category: domain.AuditCategoryTicket,
			NewValue: map[string]any{"status": "DRAFT"},
		}))
	}
	entries, err := f.audit.ListByTicket(ctx, ticket.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditActionTicketCreated, entries[0].Action)
	assert.Equal(t, "DRAFT", entries[0].NewValue["status"])

	_, err = f.pool.Exec(ctx, `UPDATE audit_logs SET description='edited' WHERE ticket_id=$1`, ticket.ID)
	assert.Error(t, err)
}
