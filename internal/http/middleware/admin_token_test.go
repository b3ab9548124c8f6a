package middleware_test

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"topicmingle/internal/http/middleware"
)

func newApp(t *testing.T, hash string) *fiber.App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	app := fiber.New()
	app.Get("/admin", middleware.AdminTokenAuth(hash, logger), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAdminTokenAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	app := newApp(t, string(hash))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid token", header: "Bearer s3cret", status: fiber.StatusOK},
		{name: "wrong token", header: "Bearer nope", status: fiber.StatusUnauthorized},
		{name: "missing header", header: "", status: fiber.StatusUnauthorized},
		{name: "basic scheme", header: "Basic s3cret", status: fiber.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAdminTokenAuthUnconfigured(t *testing.T) {
	app := newApp(t, "")

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
