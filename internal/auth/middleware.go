package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/repository"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Role   domain.Role
	Client *domain.Client
	Staff  *domain.StaffMember
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens  *TokenManager
	clients repository.ClientRepository
	staff   repository.StaffRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, clients repository.ClientRepository, staff repository.StaffRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, clients: clients, staff: staff}
}

// Handle enforces authentication for protected routes. Failures use the
// {"detail": ...} body the client expects.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return detail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return detail(c, http.StatusUnauthorized, "Invalid authorization header.")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return detail(c, http.StatusUnauthorized, "Invalid or expired token.")
	}

	principal := &Principal{Role: claims.UserType}

	switch claims.UserType {
	case domain.RoleClient:
		client, err := m.clients.GetByID(c.UserContext(), claims.SubjectID())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return detail(c, http.StatusUnauthorized, "Client not found.")
			}
			return err
		}
		principal.Client = client
	case domain.RoleStaff:
		staff, err := m.staff.GetByID(c.UserContext(), claims.SubjectID())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return detail(c, http.StatusUnauthorized, "Invalid or expired staff token")
			}
			return err
		}
		principal.Staff = staff
	default:
		return detail(c, http.StatusUnauthorized, "Unknown subject.")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}
