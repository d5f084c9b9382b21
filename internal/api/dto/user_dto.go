package dto

import "github.com/spec-kit/ticket-workflow/internal/domain"

// UserResponse is the directory view of a user.
type UserResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         domain.Role `json:"role"`
	DepartmentID string      `json:"department_id"`
}
