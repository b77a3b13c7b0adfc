package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/appeal-service/internal/domain"
)

// RequireUser ensures a requester is authenticated.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeUser {
			return fiber.NewError(http.StatusForbidden, "requester required")
		}
		return c.Next()
	}
}

// RequireOperator ensures an operator principal is present.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeOperator || principal.Operator == nil {
			return fiber.NewError(http.StatusForbidden, "operator required")
		}
		return c.Next()
	}
}

// RequireAssignCapability ensures the operator's role may assign tickets.
func RequireAssignCapability() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Operator == nil {
			return fiber.NewError(http.StatusForbidden, "operator required")
		}
		if !principal.Operator.Role.CanAssign() {
			return fiber.NewError(http.StatusForbidden, "insufficient role for assignment")
		}
		return c.Next()
	}
}
