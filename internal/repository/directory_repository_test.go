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

func TestDepartmentRepository_CreateAndList(t *testing.T) {
	mock := newMockDB(t)
	repo := NewDepartmentRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO departments`).
		WithArgs("Security", "Guards", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("d-1", now, now))

	dept := &domain.Department{Name: "Security", Description: "Guards", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), dept))
	assert.Equal(t, "d-1", dept.ID)

	mock.ExpectQuery(`SELECT .* FROM departments WHERE is_active = TRUE ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "is_active", "created_at", "updated_at"}).
			AddRow("d-2", "Operations", "", true, now, now).
			AddRow("d-1", "Security", "Guards", true, now, now))

	departments, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, departments, 2)
	assert.Equal(t, "Operations", departments[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepository_SetActive(t *testing.T) {
	mock := newMockDB(t)
	repo := NewDepartmentRepository(mock)

	mock.ExpectExec(`UPDATE departments SET is_active`).
		WithArgs(false, "d-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE departments SET is_active`).
		WithArgs(true, "d-missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SetActive(context.Background(), "d-1", false))
	assert.ErrorIs(t, repo.SetActive(context.Background(), "d-missing", true), pgx.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListByRole(t *testing.T) {
	mock := newMockDB(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT id, name, role, COALESCE\(department_id::text, ''\)\s+FROM users WHERE role=\$1 ORDER BY name`).
		WithArgs(domain.RoleFinance).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "role", "department_id"}).
			AddRow("u-1", "Fay", domain.RoleFinance, "").
			AddRow("u-2", "Finn", domain.RoleFinance, ""))

	users, err := repo.ListByRole(context.Background(), domain.RoleFinance)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Finn", users[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
