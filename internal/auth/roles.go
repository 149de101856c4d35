package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/telepredict/internal/domain"
)

// RequireRole ensures the principal has the given role.
func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Role != role {
			return detail(c, http.StatusForbidden, "You do not have permission to perform this action.")
		}
		switch role {
		case domain.RoleClient:
			if principal.Client == nil {
				return detail(c, http.StatusForbidden, "client account required")
			}
		case domain.RoleStaff:
			if principal.Staff == nil {
				return detail(c, http.StatusForbidden, "staff account required")
			}
		}
		return c.Next()
	}
}
