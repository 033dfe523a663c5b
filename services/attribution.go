package services

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"

	"referral-rewards-system/models"
	"referral-rewards-system/transport"
)

// RewardPolicy holds the fixed credit amounts per milestone, in UBT.
type RewardPolicy struct {
	SignupReward            float64
	VendorRegistrationBonus float64
}

// PolicyFromEnv reads the reward amounts, falling back to the standing policy
// values: 10 UBT for a referred signup, 3 UBT when the referred user
// registers a vendor.
func PolicyFromEnv() RewardPolicy {
	policy := RewardPolicy{SignupReward: 10, VendorRegistrationBonus: 3}
	if v := os.Getenv("REWARD_SIGNUP_UBT"); v != "" {
		if amt, err := strconv.ParseFloat(v, 64); err == nil && amt > 0 {
			policy.SignupReward = amt
		} else {
			log.Printf("⚠️  Ignoring invalid REWARD_SIGNUP_UBT=%q", v)
		}
	}
	if v := os.Getenv("REWARD_VENDOR_BONUS_UBT"); v != "" {
		if amt, err := strconv.ParseFloat(v, 64); err == nil && amt > 0 {
			policy.VendorRegistrationBonus = amt
		} else {
			log.Printf("⚠️  Ignoring invalid REWARD_VENDOR_BONUS_UBT=%q", v)
		}
	}
	return policy
}

func (p RewardPolicy) amountFor(milestone models.RewardMilestone) float64 {
	if milestone == models.MilestoneReferralVendorRegistration {
		return p.VendorRegistrationBonus
	}
	return p.SignupReward
}

// AttributionService connects a referred user's milestone to their referrer's
// reward. Broken codes and self-referrals are absorbed here — logged, never
// escalated to the user who triggered the milestone.
type AttributionService struct {
	Registry  *ReferralCodeRegistry
	Ledger    *LedgerService
	Store     RecordStore
	Messenger transport.Messenger
	Policy    RewardPolicy
}

func NewAttributionService(store RecordStore, registry *ReferralCodeRegistry, ledger *LedgerService, messenger transport.Messenger, policy RewardPolicy) *AttributionService {
	return &AttributionService{
		Registry:  registry,
		Ledger:    ledger,
		Store:     store,
		Messenger: messenger,
		Policy:    policy,
	}
}

// Attribute credits the referrer of triggeringUser for the given milestone.
// Safe to call on every milestone event: users without a referrer no-op, and
// redelivered events dedup at the ledger.
func (s *AttributionService) Attribute(ctx context.Context, triggeringUser *models.User, milestone models.RewardMilestone) error {
	if triggeringUser == nil || triggeringUser.ReferredByCode == "" {
		return nil
	}

	referrer, err := s.Registry.Resolve(ctx, triggeringUser.ReferredByCode)
	if errors.Is(err, ErrCodeNotFound) {
		log.Printf("referrer with code %s (for user %s) not found, skipping attribution", triggeringUser.ReferredByCode, triggeringUser.ID)
		return nil
	}
	if err != nil {
		return err
	}

	// A user must never reward themselves, even though codes are only
	// assigned at completion and shouldn't match here.
	if referrer.ID == triggeringUser.ID {
		log.Printf("user %s attempted self-referral with code %s, skipping", triggeringUser.ID, triggeringUser.ReferredByCode)
		return nil
	}

	amount := s.Policy.amountFor(milestone)
	outcome, err := s.Ledger.Credit(ctx, amount, DedupKey{
		BeneficiaryID:    referrer.ID,
		Milestone:        milestone,
		TriggeringUserID: triggeringUser.ID,
	})
	if err != nil {
		return err
	}
	if outcome != CreditApplied {
		return nil
	}

	// Referral count tracks distinct referred signups; the first applied
	// signup credit is exactly that boundary.
	if milestone == models.MilestoneReferralSignup {
		if err := s.Store.IncrementUserReferralCount(ctx, referrer.ID); err != nil {
			log.Printf("❌ Failed to bump referral count for %s: %v", referrer.ID, err)
		}
	}

	// Notification is best effort — the credit stands even if the message
	// never arrives.
	notifyErr := s.Messenger.NotifyReward(ctx, transport.RewardNotification{
		ReferrerID:      referrer.ID,
		BeneficiaryName: triggeringUser.Name,
		Amount:          amount,
		Milestone:       milestone,
	})
	if notifyErr != nil {
		log.Printf("❌ Failed to notify referrer %s about %s reward: %v", referrer.ID, milestone, notifyErr)
	} else {
		log.Printf("✅ Credited %.0f UBT to %s for %s by %s", amount, referrer.ID, milestone, triggeringUser.ID)
	}
	return nil
}
