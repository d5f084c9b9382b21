package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

var ticketRowColumns = []string{
	"id", "number", "title", "description", "status", "priority", "department_id", "category", "creator_id",
	"assignee_id", "requires_finance_approval", "latest_finance_status", "finance_submission_count",
	"waive_document_requirements", "due_date", "created_at", "updated_at",
}

func ticketRow(rows *pgxmock.Rows, id string, status domain.TicketStatus) *pgxmock.Rows {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "TKT-000001", "Leaking roof", "Water in the lobby", status, domain.TicketPriorityHigh,
		"dept-1", "maintenance", "user-1", (*string)(nil), true, domain.FinanceStatusNone, 0,
		false, (*time.Time)(nil), now, now,
	)
}

func TestTicketRepository_Create(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`(?s)INSERT INTO tickets .*ticket_number_seq`).
		WithArgs(
			"Leaking roof", "Water in the lobby", domain.TicketStatusDraft, domain.TicketPriorityHigh,
			"dept-1", "maintenance", "user-1", pgxmock.AnyArg(), true, domain.FinanceStatusNone, 0, false,
			pgxmock.AnyArg(),
		).
		WillReturnRows(pgxmock.NewRows([]string{"id", "number", "created_at", "updated_at"}).
			AddRow("t-1", "TKT-000042", now, now))

	ticket := &domain.Ticket{
		Title:                   "Leaking roof",
		Description:             "Water in the lobby",
		Status:                  domain.TicketStatusDraft,
		Priority:                domain.TicketPriorityHigh,
		DepartmentID:            "dept-1",
		Category:                "maintenance",
		CreatorID:               "user-1",
		RequiresFinanceApproval: true,
	}
	require.NoError(t, repo.Create(context.Background(), ticket))
	assert.Equal(t, "t-1", ticket.ID)
	assert.Equal(t, "TKT-000042", ticket.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock := newMockDB(t)
		repo := NewTicketRepository(mock)

		mock.ExpectQuery(`(?s)SELECT .* FROM tickets WHERE id=\$1$`).
			WithArgs("t-1").
			WillReturnRows(ticketRow(pgxmock.NewRows(ticketRowColumns), "t-1", domain.TicketStatusActive))

		ticket, err := repo.GetByID(context.Background(), "t-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusActive, ticket.Status)
		assert.Nil(t, ticket.AssigneeID)
		assert.True(t, ticket.RequiresFinanceApproval)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMockDB(t)
		repo := NewTicketRepository(mock)

		mock.ExpectQuery(`(?s)SELECT .* FROM tickets WHERE id=\$1`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, pgx.ErrNoRows)
	})
}

func TestTicketRepository_GetByIDForUpdateLocksRow(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock)

	mock.ExpectQuery(`FROM tickets WHERE id=\$1 FOR UPDATE`).
		WithArgs("t-1").
		WillReturnRows(ticketRow(pgxmock.NewRows(ticketRowColumns), "t-1", domain.TicketStatusCreated))

	ticket, err := repo.GetByIDForUpdate(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCreated, ticket.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_ListWithFilter(t *testing.T) {
	mock := newMockDB(t)
	repo := NewTicketRepository(mock)
	creator := "user-1"

	rows := pgxmock.NewRows(ticketRowColumns)
	ticketRow(rows, "t-1", domain.TicketStatusActive)
	ticketRow(rows, "t-2", domain.TicketStatusCreated)

	mock.ExpectQuery(`(?s)SELECT .* FROM tickets WHERE creator_id = \$1 AND status IN \(\$2,\$3\) ORDER BY updated_at DESC LIMIT 20 OFFSET 0`).
		WithArgs("user-1", "ACTIVE", "CREATED").
		WillReturnRows(rows)

	result, err := repo.ListWithFilter(context.Background(), TicketFilter{
		CreatorID: &creator,
		Statuses:  []domain.TicketStatus{domain.TicketStatusActive, domain.TicketStatusCreated},
	})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "t-2", result[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
