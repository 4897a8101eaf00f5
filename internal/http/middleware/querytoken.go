package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// QueryTokenAuth guards the analytics query endpoint with a bearer token
// checked against a bcrypt hash. An empty hash disables the check.
// Expects: Authorization: Bearer <token>
func QueryTokenAuth(tokenHash string, logger *slog.Logger) fiber.Handler {
	if tokenHash == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	hash := []byte(tokenHash)
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <token>",
			})
		}
		if token = strings.TrimSpace(token); token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token is empty",
			})
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
			logger.Debug("Rejected analytics query token", slog.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		return c.Next()
	}
}

// HashQueryToken returns the bcrypt hash stored in the query_token_hash config.
func HashQueryToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
