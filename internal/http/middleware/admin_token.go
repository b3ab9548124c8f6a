package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// AdminTokenAuth validates the admin bearer token against a bcrypt hash.
// Expects: Authorization: Bearer <token>
func AdminTokenAuth(tokenHash string, logger *slog.Logger) fiber.Handler {
	hash := []byte(strings.TrimSpace(tokenHash))

	return func(c *fiber.Ctx) error {
		if len(hash) == 0 {
			logger.Warn("Admin token not configured, rejecting admin request", slog.String("path", c.Path()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Admin token not configured. Set TOPICMINGLE_ADMIN_TOKEN_HASH (see tmctl hash-token).",
			})
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <token>",
			})
		}

		provided := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token is empty",
			})
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(provided)); err != nil {
			logger.Debug("Rejected admin token", slog.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		return c.Next()
	}
}
