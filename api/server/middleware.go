package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kilianp07/dockyard/auth"
)

// Locals keys set by JWTAuth.
const (
	localUser = "username"
	localRole = "role"
)

// JWTAuth rejects requests without a valid bearer token.
func JWTAuth(iss *auth.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}
		claims, err := iss.ValidateToken(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}
		c.Locals(localUser, claims.Username)
		c.Locals(localRole, claims.Role)
		return c.Next()
	}
}

// RoleAuth only lets tokens with one of roles through. It must run after
// JWTAuth.
func RoleAuth(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(localRole).(string)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient role"})
	}
}
