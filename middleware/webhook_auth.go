// middleware/webhook_auth.go
package middleware

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
)

const secretTokenHeader = "X-Bot-Api-Secret-Token"

// WebhookAuthMiddleware validates the shared secret the bot platform echoes
// back on every webhook delivery. Anything without the right token is not a
// delivery we asked for.
func WebhookAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("WEBHOOK_SECRET_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ WEBHOOK_SECRET_TOKEN is not set — webhook deliveries cannot be authenticated")
	}

	return func(c *fiber.Ctx) error {
		token := c.Get(secretTokenHeader)
		if token == "" {
			log.Printf("🚫 [WEBHOOK_AUTH] Missing secret token header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "webhook secret token missing",
			})
		}
		if token != expectedToken {
			log.Printf("❌ [WEBHOOK_AUTH] Invalid secret token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid webhook secret token",
			})
		}
		return c.Next()
	}
}
