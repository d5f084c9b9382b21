package repository

import (
	"context"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// UserRepository reads the directory's users table. The engine never writes
// identities except when seeding fixtures.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type userRepository struct {
	db DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, role, department_id)
        VALUES ($1, $2, NULLIF($3, '')::uuid)
        RETURNING id`

	return querier(ctx, r.db).QueryRow(ctx, query,
		user.Name,
		user.Role,
		user.DepartmentID,
	).Scan(&user.ID)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, name, role, COALESCE(department_id::text, '')
        FROM users WHERE id=$1`

	var user domain.User
	if err := querier(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Role,
		&user.DepartmentID,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	const query = `
        SELECT id, name, role, COALESCE(department_id::text, '')
        FROM users WHERE role=$1 ORDER BY name`

	rows, err := querier(ctx, r.db).Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Role, &user.DepartmentID); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
