package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

func TestAssignTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.activeTicket(t, false)

	assigned, err := h.assignments.AssignTicket(ctx, h.manager, ticket.ID, &h.engineer.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, h.engineer.ID, *h.store.ticket(ticket.ID).AssigneeID)

	cleared, err := h.assignments.AssignTicket(ctx, h.overseer, ticket.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssigneeID)
	assert.Nil(t, h.store.ticket(ticket.ID).AssigneeID)

	assert.Equal(t, []domain.AuditAction{
		domain.AuditActionAssigneeChanged,
		domain.AuditActionAssigneeChanged,
	}, h.store.auditActions(ticket.ID)[3:])
	assert.Contains(t, h.events.seen(), events.EventAssigneeChanged)
}

func TestAssignTicket_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.activeTicket(t, false)
	hrEngineer := domain.User{ID: "u-hr-engineer", Role: domain.RoleFieldEngineer, DepartmentID: deptHR}
	h.dir.users[hrEngineer.ID] = hrEngineer
	ghost := "u-ghost"

	tests := []struct {
		name     string
		actor    *domain.User
		assignee *string
		code     string
	}{
		{name: "engineer may not assign", actor: h.engineer, assignee: &h.engineer.ID, code: errorutil.CodePermissionDenied},
		{name: "other department manager", actor: h.hrManager, assignee: &h.engineer.ID, code: errorutil.CodePermissionDenied},
		{name: "unknown assignee", actor: h.manager, assignee: &ghost, code: errorutil.CodeValidation},
		{name: "assignee from another department", actor: h.manager, assignee: &hrEngineer.ID, code: errorutil.CodeValidation},
		{name: "requester as assignee", actor: h.manager, assignee: &h.requester.ID, code: errorutil.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.store.snapshot(ticket.ID)
			_, err := h.assignments.AssignTicket(ctx, tt.actor, ticket.ID, tt.assignee)
			require.Error(t, err)
			assert.Equal(t, tt.code, errorutil.CodeOf(err))
			assert.Equal(t, before, h.store.snapshot(ticket.ID))
		})
	}

	h.dir.err = errors.New("directory down")
	_, err := h.assignments.AssignTicket(ctx, h.manager, ticket.ID, &h.engineer.ID)
	assert.Equal(t, errorutil.CodeDependencyUnavailable, errorutil.CodeOf(err))
}

func TestAssignStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.activeTicket(t, false)
	step := h.addStep(t, ticket.ID, StepCreateInput{Title: "Repair"})

	updated, err := h.assignments.AssignStep(ctx, h.manager, step.ID, &h.engineer.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, h.engineer.ID, *h.store.step(step.ID).AssigneeID)

	_, err = h.assignments.AssignStep(ctx, h.engineer, step.ID, nil)
	assert.Equal(t, errorutil.CodePermissionDenied, errorutil.CodeOf(err))

	h.mustTransition(t, h.manager, ticket.ID, domain.TicketStatusActive, domain.TicketStatusCancelled)
	_, err = h.assignments.AssignStep(ctx, h.manager, step.ID, nil)
	assert.Equal(t, errorutil.CodeInvalidState, errorutil.CodeOf(err))
}

func TestSelfAssignStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.activeTicket(t, false)
	step := h.addStep(t, ticket.ID, StepCreateInput{Title: "Repair"})

	taken, err := h.assignments.SelfAssignStep(ctx, h.engineer, step.ID)
	require.NoError(t, err)
	assert.Equal(t, h.engineer.ID, *taken.AssigneeID)

	_, err = h.assignments.SelfAssignStep(ctx, h.engineer, step.ID)
	assert.NoError(t, err)

	_, err = h.assignments.SelfAssignStep(ctx, h.manager, step.ID)
	assert.Equal(t, errorutil.CodeInvalidState, errorutil.CodeOf(err))

	_, err = h.assignments.SelfAssignStep(ctx, h.requester, step.ID)
	assert.Equal(t, errorutil.CodePermissionDenied, errorutil.CodeOf(err))
}
