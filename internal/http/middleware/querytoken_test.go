package middleware

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedApp(t *testing.T, tokenHash string) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	app := fiber.New()
	app.Get("/api/analytics", QueryTokenAuth(tokenHash, logger), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestQueryTokenAuth(t *testing.T) {
	hash, err := HashQueryToken("s3cret-token")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-token", hash)

	tests := []struct {
		name          string
		tokenHash     string
		authorization string
		expected      int
	}{
		{"open when no hash is configured", "", "", fiber.StatusOK},
		{"missing header", hash, "", fiber.StatusUnauthorized},
		{"wrong scheme", hash, "Basic s3cret-token", fiber.StatusUnauthorized},
		{"empty bearer", hash, "Bearer   ", fiber.StatusUnauthorized},
		{"wrong token", hash, "Bearer nope", fiber.StatusUnauthorized},
		{"valid token", hash, "Bearer s3cret-token", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newGuardedApp(t, tt.tokenHash)

			req := httptest.NewRequest("GET", "/api/analytics", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}
