// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"referral-rewards-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartApprovalDigest sends the admin a daily count of vendors still waiting
// for approval. Approval itself happens outside this service.
func (s *VendorFlowService) StartApprovalDigest(interval time.Duration) {
	if s.AdminChatID == "" {
		log.Println("⚠️  ADMIN_CHAT_ID not set, vendor approval digest disabled")
		return
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			pending, err := s.Store.CountVendorsByStatus(ctx, models.VendorStatusPendingApproval)
			if err != nil {
				log.Printf("[Digest] DB error: %v", err)
				return
			}
			if pending == 0 {
				return
			}

			log.Printf("[Digest] %d vendor(s) pending approval", pending)
			msg := fmt.Sprintf("🔔 Vendor approvals pending: %d", pending)
			if err := s.Messenger.SendMessage(ctx, s.AdminChatID, msg, nil); err != nil {
				log.Printf("[Digest] Failed to notify admin: %v", err)
			}
		}),
	)
}
