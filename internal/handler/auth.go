package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/auth"
)

// LocalsSubject is the fiber locals key holding the authenticated subject.
const LocalsSubject = "authSubject"

type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if header == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization")
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "empty token")
		}

		claims, err := validator.Validate(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(LocalsSubject, claims.Subject)
		return c.Next()
	}
}
