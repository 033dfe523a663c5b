// handlers/webhook.go
package handlers

import (
	"log"

	"referral-rewards-system/middleware"
	"referral-rewards-system/services"
	"referral-rewards-system/transport"

	"github.com/gofiber/fiber/v2"
)

// SetupWebhookRoutes mounts the transport's push ingress. Deliveries are
// authenticated by the shared secret header and always acknowledged with 200
// so the platform doesn't retry events we've already consumed.
func SetupWebhookRoutes(app *fiber.App, dispatcher *services.Dispatcher) {
	app.Post("/webhook", middleware.WebhookAuthMiddleware(), func(c *fiber.Ctx) error {
		ev, ok, err := transport.ParseUpdateJSON(c.Body())
		if err != nil {
			log.Printf("❌ [WEBHOOK] Undecodable update: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid update payload"})
		}
		if !ok {
			// update kind we don't consume — acknowledge and move on
			return c.SendStatus(fiber.StatusOK)
		}

		if err := dispatcher.Dispatch(c.Context(), ev); err != nil {
			// the user-facing outcome was already handled inside the flow;
			// still return 200 so the delivery is not replayed
			log.Printf("❌ [WEBHOOK] Failed to handle update from %s: %v", ev.UserID, err)
		}
		return c.SendStatus(fiber.StatusOK)
	})
}
