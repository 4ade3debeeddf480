package middleware

import (
	"brickshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards operator routes (sweep, finalize). The header value is
// compared against a bcrypt hash; an empty hash rejects every request.
func RequireAdminKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(AdminKeyHeader)
		if hash == "" || key == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals("actor", "admin")
		return c.Next()
	}
}
