package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-workflow/internal/domain"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util/errorutil"
)

// RequireRole ensures the caller holds one of the allowed roles. Ticket-level
// permissions are decided by the workflow permission table; this guard only
// fences off whole route groups.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return apperrors.NewPermissionDenied("insufficient role", map[string]any{
				"actor_id": actor.ID,
				"role":     actor.Role,
			})
		}
		return c.Next()
	}
}

// RequireActor ensures a caller is authenticated.
func RequireActor() fiber.Handler {
	return RequireRole()
}
