// handlers/query_routes.go
package handlers

import (
	"referral-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupQueryRoutes exposes the read-only record fields any presentation layer
// may consume: balances, referral counts, payout readiness, vendor status.
// Nothing here mutates state.
func SetupQueryRoutes(app *fiber.App, store services.RecordStore) {
	app.Get("/users/:id", func(c *fiber.Ctx) error {
		user, err := store.GetUser(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching user"})
		}
		if user == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.JSON(fiber.Map{
			"id":                   user.ID,
			"name":                 user.Name,
			"onboarding_completed": user.OnboardingCompleted,
			"vendor_registered":    user.VendorRegistered,
			"earned_balance":       user.EarnedBalance,
			"referral_count":       user.ReferralCount,
			"payout_ready":         user.PayoutReady,
			"last_payout_at":       user.LastPayoutAt,
		})
	})

	app.Get("/users/:id/referrals", func(c *fiber.Ctx) error {
		user, err := store.GetUser(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching user"})
		}
		if user == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.JSON(fiber.Map{
			"referral_code":  user.ReferralCode,
			"referral_count": user.ReferralCount,
			"earned_balance": user.EarnedBalance,
			"payout_ready":   user.PayoutReady,
		})
	})

	app.Get("/vendors/:id", func(c *fiber.Ctx) error {
		vendor, err := store.GetVendor(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching vendor"})
		}
		if vendor == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Vendor not found"})
		}
		return c.JSON(fiber.Map{
			"id":            vendor.ID,
			"business_name": vendor.BusinessName,
			"slug":          vendor.Slug,
			"category":      vendor.Category,
			"status":        vendor.Status,
			"submitted_at":  vendor.SubmittedAt,
		})
	})
}
