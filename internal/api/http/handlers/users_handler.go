package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/api/dto"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/service"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// UsersHandler exposes directory users, starting with the calling actor.
type UsersHandler struct {
	organization *service.OrganizationService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(organization *service.OrganizationService) *UsersHandler {
	return &UsersHandler{organization: organization}
}

// Me handles GET /me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, err := actor(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// List handles GET /users?role=, e.g. role=FINANCE to pick a finance officer.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	role := domain.Role(c.Query("role"))
	if role == "" {
		return apperrors.NewValidationError("role is required", map[string]any{"field": "role"})
	}
	users, err := h.organization.ListUsers(c.UserContext(), role)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
	}
}
