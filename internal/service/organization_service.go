package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/repository"
	"github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// OrganizationService serves departments and the directory's user listing.
// Department administration is reserved to overseers.
type OrganizationService struct {
	departments repository.DepartmentRepository
	users       repository.UserRepository
	logger      *zap.Logger
}

// NewOrganizationService constructs the service.
func NewOrganizationService(departments repository.DepartmentRepository, users repository.UserRepository, logger *zap.Logger) *OrganizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizationService{departments: departments, users: users, logger: logger}
}

// DepartmentInput describes a new department.
type DepartmentInput struct {
	Name        string
	Description string
}

// ListDepartments returns the active departments tickets may be filed under.
func (s *OrganizationService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	departments, err := s.departments.ListActive(ctx)
	if err != nil {
		return nil, storeErr(err, "departments", nil)
	}
	return departments, nil
}

// CreateDepartment adds an active department.
func (s *OrganizationService) CreateDepartment(ctx context.Context, actor *domain.User, input DepartmentInput) (*domain.Department, error) {
	if err := requireOverseer(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errorutil.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	dept := &domain.Department{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		IsActive:    true,
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, storeErr(err, "department", map[string]any{"name": name})
	}
	s.logger.Info("department created", zap.String("department_id", dept.ID), zap.String("actor_id", actor.ID))
	return dept, nil
}

// SetDepartmentActive toggles whether new tickets may be filed under the department.
func (s *OrganizationService) SetDepartmentActive(ctx context.Context, actor *domain.User, id string, active bool) (*domain.Department, error) {
	if err := requireOverseer(actor); err != nil {
		return nil, err
	}
	if err := s.departments.SetActive(ctx, id, active); err != nil {
		return nil, storeErr(err, "department", map[string]any{"department_id": id})
	}
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "department", map[string]any{"department_id": id})
	}
	s.logger.Info("department activation changed",
		zap.String("department_id", id),
		zap.Bool("active", active),
		zap.String("actor_id", actor.ID),
	)
	return dept, nil
}

// ListUsers returns the directory users holding role, e.g. the finance
// officers a submission may name.
func (s *OrganizationService) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if !role.IsValid() {
		return nil, errorutil.NewValidationError("unknown role", map[string]any{"field": "role", "value": role})
	}
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, errorutil.FromStore(err, dependencyDirectory, "users", map[string]any{"role": role})
	}
	return users, nil
}

func requireOverseer(actor *domain.User) error {
	if actor == nil {
		return errorutil.NewUnauthorized("actor required")
	}
	if actor.Role != domain.RoleOverseer {
		return errorutil.NewPermissionDenied("only overseers manage departments", map[string]any{
			"actor_id": actor.ID,
			"role":     actor.Role,
		})
	}
	return nil
}
