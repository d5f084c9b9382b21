// Package directory resolves actors from the identity directory.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/repository"
)

// ErrNotFound means the directory has no such user. Any other error means the
// directory could not be consulted.
var ErrNotFound = errors.New("user not found in directory")

// Directory looks up users.
type Directory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Store reads users from the relational store.
type Store struct {
	users repository.UserRepository
}

// NewStore wraps the user repository.
func NewStore(users repository.UserRepository) *Store {
	return &Store{users: users}
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("directory lookup %s: %w", id, err)
	}
	return user, nil
}
